package services

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/modules/core/infrastructure/objects"
	"github.com/jacksonlee411/grc-console/pkg/serrors"
)

var (
	ErrNoSharedRelationship = serrors.NewError("ISSUE_NO_SHARED_RELATIONSHIP", "issue and target share no relationship", "Issue.Unmap.Errors.NoRelationship")
	ErrRelationshipRefresh  = serrors.NewError("ISSUE_RELATIONSHIP_REFRESH", "relationship refresh failed", "Issue.Unmap.Errors.Unmap")
	ErrRelationshipDelete   = serrors.NewError("ISSUE_RELATIONSHIP_DELETE", "relationship delete failed", "Issue.Unmap.Errors.Unmap")
)

// RelationshipFinder looks relationships up by id in the request's object cache.
type RelationshipFinder interface {
	FindRelationship(ctx context.Context, id int64) (objects.Relationship, bool)
}

type UnmapService struct {
	relationships RelationshipFinder
	log           *logrus.Entry
}

func NewUnmapService(relationships RelationshipFinder, logger *logrus.Logger) *UnmapService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UnmapService{
		relationships: relationships,
		log:           logger.WithField("component", "issue.unmap"),
	}
}

// Relationship resolves the relationship joining issue and target. When the two
// share more than one relationship id the first one in issue order wins.
func (s *UnmapService) Relationship(ctx context.Context, issue, target *instance.Instance) (objects.Relationship, error) {
	if issue == nil || target == nil {
		return nil, serrors.Wrap(ErrNoSharedRelationship, errors.New("issue and target are required"))
	}
	ids := instance.SharedRelationshipIDs(issue, target)
	if len(ids) == 0 {
		return nil, serrors.Wrap(ErrNoSharedRelationship, fmt.Errorf("%s and %s", issue.Key(), target.Key()))
	}
	if len(ids) > 1 {
		s.log.WithFields(logrus.Fields{
			"issue":  issue.Key(),
			"target": target.Key(),
			"ids":    ids,
		}).Debug("several shared relationships, using the first")
	}
	rel, cached := s.relationships.FindRelationship(ctx, ids[0])
	if !cached {
		s.log.WithField("relationship", ids[0]).Debug("relationship not cached, will be loaded by refresh")
	}
	return rel, nil
}

// Unmap removes the relationship between issue and target together with the
// snapshots mapped through it. The relationship is refreshed first so the delete
// carries the latest version.
func (s *UnmapService) Unmap(ctx context.Context, issue, target *instance.Instance) error {
	rel, err := s.Relationship(ctx, issue, target)
	if err != nil {
		recordUnmap(resultNoRelationship)
		return err
	}
	if err := rel.Refresh(ctx); err != nil {
		recordUnmap(resultRefreshFailed)
		return serrors.Wrap(ErrRelationshipRefresh, errors.Wrapf(err, "refresh relationship %d", rel.ID()))
	}
	if err := rel.Unmap(ctx, true); err != nil {
		recordUnmap(resultDeleteFailed)
		return serrors.Wrap(ErrRelationshipDelete, errors.Wrapf(err, "delete relationship %d", rel.ID()))
	}
	recordUnmap(resultOK)
	s.log.WithFields(logrus.Fields{
		"issue":        issue.Key(),
		"target":       target.Key(),
		"relationship": rel.ID(),
	}).Info("issue unmapped")
	return nil
}
