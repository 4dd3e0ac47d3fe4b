package services

import (
	"context"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
	"github.com/jacksonlee411/grc-console/pkg/serrors"
)

const (
	DefaultOptionsLimit = 20
	MaxOptionsLimit     = 100
	candidatePageSize   = 200
)

var ErrPersonQuery = serrors.NewError("PERSON_QUERY", "person lookup failed", "Person.Errors.Query")

type PersonService struct {
	query queryapi.Client
	log   *logrus.Entry
}

func NewPersonService(query queryapi.Client, logger *logrus.Logger) *PersonService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PersonService{
		query: query,
		log:   logger.WithField("component", "person.options"),
	}
}

// candidatePage is the first page of people the picker ranks from.
type candidatePage struct{}

func (candidatePage) PageIndex() int { return 0 }
func (candidatePage) PageSize() int  { return candidatePageSize }

// Options returns the people matching q for the person picker, best match
// first. The server narrows the candidates by text search before they are
// ranked, so everyone it knows can be found. An empty q keeps the server order.
func (s *PersonService) Options(ctx context.Context, q string, limit int) ([]*instance.Instance, error) {
	if limit <= 0 {
		limit = DefaultOptionsLimit
	}
	if limit > MaxOptionsLimit {
		limit = MaxOptionsLimit
	}
	q = strings.TrimSpace(q)

	var filters []queryapi.Filter
	if q != "" {
		filters = append(filters, queryapi.TextSearch(q))
	}
	resp, err := s.query.MakeRequest(ctx, queryapi.Request{
		Data: []queryapi.Query{queryapi.BuildParam(instance.TypePerson, candidatePage{}, filters...)},
	})
	if err != nil {
		return nil, serrors.Wrap(ErrPersonQuery, err)
	}
	res, ok := resp.Result(0, instance.TypePerson)
	if !ok {
		return nil, serrors.Wrap(ErrPersonQuery, errors.New("person result missing from response"))
	}
	people, err := queryapi.DecodeValues[*instance.Instance](res)
	if err != nil {
		return nil, serrors.Wrap(ErrPersonQuery, errors.Wrap(err, "decode people"))
	}

	ranked := Rank(q, people)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	log := s.log.WithFields(logrus.Fields{"q": q, "candidates": len(people), "total": res.Total, "matches": len(ranked)})
	if res.Total > len(people) {
		log.Debug("person options ranked from the first page of matches")
	} else {
		log.Debug("person options")
	}
	return ranked, nil
}

// Rank orders people by fuzzy distance of q to their name and email.
func Rank(q string, people []*instance.Instance) []*instance.Instance {
	if q == "" {
		return people
	}
	labels := make([]string, len(people))
	for i, p := range people {
		labels[i] = strings.TrimSpace(p.Name + " " + p.Email)
	}
	ranks := fuzzy.RankFindNormalizedFold(q, labels)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})
	out := make([]*instance.Instance, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, people[r.OriginalIndex])
	}
	return out
}
