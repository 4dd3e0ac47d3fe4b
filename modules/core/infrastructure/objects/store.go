// Package objects is the client-side object model: a per-request identity map
// of loaded instances over a bounded cache shared between requests,
// reification of stubs, refresh from the server and relationship deletion.
package objects

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
)

const (
	DefaultCacheSize = 4096
	DefaultCacheTTL  = 10 * time.Minute
)

// API is the subset of the REST object API the store needs.
type API interface {
	Get(ctx context.Context, typ string, id int64) (*instance.Instance, Version, error)
	Delete(ctx context.Context, typ string, id int64, version Version, cascade bool) error
}

// Backend is an optional second-level cache shared between processes. Keys
// are already scoped to the caller's credentials.
type Backend interface {
	Load(ctx context.Context, key string) (*instance.Instance, bool, error)
	Save(ctx context.Context, key string, inst *instance.Instance) error
	Remove(ctx context.Context, key string) error
}

// Relationship is a join record that can be refreshed and deleted.
type Relationship interface {
	ID() int64
	Refresh(ctx context.Context) error
	Unmap(ctx context.Context, cascade bool) error
}

type StoreOptions struct {
	API     API
	Backend Backend
	Logger  *logrus.Logger
	// Size caps the number of objects kept between requests.
	Size int
	TTL  time.Duration
}

type cachedObject struct {
	inst    *instance.Instance
	version Version
}

// Store keeps copies of server-confirmed objects between requests, scoped to
// the credentials they were fetched with. Requests never see those copies
// directly: they read through a Session, which hands out its own instances.
type Store struct {
	api     API
	backend Backend
	log     *logrus.Entry
	shared  *expirable.LRU[string, cachedObject]
}

func NewStore(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	size := opts.Size
	if size <= 0 {
		size = DefaultCacheSize
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Store{
		api:     opts.API,
		backend: opts.Backend,
		log:     logger.WithField("component", "object-store"),
		shared:  expirable.NewLRU[string, cachedObject](size, nil, ttl),
	}
}

// Len reports how many objects the shared cache holds.
func (s *Store) Len() int {
	return s.shared.Len()
}

// Session is the identity map of one request: asking twice for the same
// object yields the same pointer, and nothing it hands out is visible to
// other requests.
type Session struct {
	store *Store
	scope string

	mu       sync.Mutex
	objects  map[string]*instance.Instance
	versions map[string]Version
}

type sessionKey struct{}

// WithSession attaches a fresh identity map to ctx. Store calls made with the
// returned context share it.
func (s *Store) WithSession(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, s.newSession(ctx))
}

// Middleware gives every request its own session.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(s.WithSession(r.Context())))
	})
}

func (s *Store) newSession(ctx context.Context) *Session {
	return &Session{
		store:    s,
		scope:    credentialScope(ctx),
		objects:  make(map[string]*instance.Instance),
		versions: make(map[string]Version),
	}
}

// session returns the identity map attached to ctx, or a throwaway one.
func (s *Store) session(ctx context.Context) *Session {
	if sess, ok := ctx.Value(sessionKey{}).(*Session); ok && sess.store == s {
		return sess
	}
	return s.newSession(ctx)
}

// credentialScope partitions the shared cache by the forwarded credentials so
// an object fetched for one caller is never served to another.
func credentialScope(ctx context.Context) string {
	token := queryapi.AuthTokenFromContext(ctx)
	if token == "" {
		return "static"
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:12])
}

func (sess *Session) sharedKey(key string) string {
	return sess.scope + ":" + key
}

// Put registers inst in the request's identity map and returns the canonical
// pointer for its key. An existing instance is overwritten in place.
func (s *Store) Put(ctx context.Context, inst *instance.Instance) *instance.Instance {
	return s.session(ctx).put(inst)
}

func (sess *Session) put(inst *instance.Instance) *instance.Instance {
	if inst == nil {
		return nil
	}
	key := inst.Key()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if existing, ok := sess.objects[key]; ok {
		if existing != inst {
			*existing = *inst
		}
		return existing
	}
	sess.objects[key] = inst
	return inst
}

// FindInCache looks an object up in the request's identity map without any
// I/O and without registering anything.
func (s *Store) FindInCache(ctx context.Context, typ string, id int64) (*instance.Instance, bool) {
	return s.session(ctx).find(instance.Key(typ, id))
}

func (sess *Session) find(key string) (*instance.Instance, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	inst, ok := sess.objects[key]
	return inst, ok
}

// Reify resolves a stub into the request's instance. On a miss the shared
// caches are consulted; failing that a bare instance holding only the stub's
// identity is registered for this request, so callers can tell it is unloaded
// by its empty title.
func (s *Store) Reify(ctx context.Context, stub instance.Stub) *instance.Instance {
	sess := s.session(ctx)
	key := stub.Key()
	if inst, ok := sess.find(key); ok {
		return inst
	}
	if c, ok := s.shared.Get(sess.sharedKey(key)); ok {
		recordCacheRequest(stub.Type, true)
		sess.setVersion(key, c.version)
		return sess.put(c.inst.Clone())
	}
	recordCacheRequest(stub.Type, false)
	if s.backend != nil {
		inst, ok, err := s.backend.Load(ctx, sess.sharedKey(key))
		if err != nil {
			s.log.WithError(err).WithField("key", key).Warn("shared cache load failed")
		}
		if ok {
			return sess.put(inst)
		}
	}
	return sess.put(&instance.Instance{ID: stub.ID, Type: stub.Type, SelfLink: stub.Href})
}

// Refresh reloads inst from the server and updates the request's canonical
// instance in place. A copy goes to the shared caches.
func (s *Store) Refresh(ctx context.Context, inst *instance.Instance) (*instance.Instance, error) {
	fresh, version, err := s.api.Get(ctx, inst.Type, inst.ID)
	if err != nil {
		return nil, err
	}
	if fresh.Type == "" {
		fresh.Type = inst.Type
	}

	sess := s.session(ctx)
	key := fresh.Key()
	sess.mu.Lock()
	canonical, ok := sess.objects[key]
	if !ok {
		canonical = inst
		sess.objects[key] = canonical
	}
	*canonical = *fresh.Clone()
	sess.versions[key] = version
	sess.mu.Unlock()

	s.shared.Add(sess.sharedKey(key), cachedObject{inst: fresh, version: version})
	if s.backend != nil {
		if err := s.backend.Save(ctx, sess.sharedKey(key), fresh); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("shared cache save failed")
		}
	}
	return canonical, nil
}

// Load fetches an object by type and id and caches it.
func (s *Store) Load(ctx context.Context, typ string, id int64) (*instance.Instance, error) {
	return s.Refresh(ctx, s.Reify(ctx, instance.Stub{ID: id, Type: typ}))
}

func (sess *Session) setVersion(key string, v Version) {
	sess.mu.Lock()
	sess.versions[key] = v
	sess.mu.Unlock()
}

func (sess *Session) version(key string) Version {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.versions[key]
}

func (s *Store) evict(ctx context.Context, sess *Session, key string) {
	sess.mu.Lock()
	delete(sess.objects, key)
	delete(sess.versions, key)
	sess.mu.Unlock()

	s.shared.Remove(sess.sharedKey(key))
	if s.backend != nil {
		if err := s.backend.Remove(ctx, sess.sharedKey(key)); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("shared cache remove failed")
		}
	}
}

// FindRelationship returns a handle on the relationship with the given id.
// The handle is backed by the request's instance, or by a bare one when the
// relationship was never loaded; Refresh fills it in either case.
func (s *Store) FindRelationship(ctx context.Context, id int64) (Relationship, bool) {
	sess := s.session(ctx)
	key := instance.Key(instance.TypeRelationship, id)
	inst, ok := sess.find(key)
	if !ok {
		if c, hit := s.shared.Get(sess.sharedKey(key)); hit {
			sess.setVersion(key, c.version)
			inst, ok = sess.put(c.inst.Clone()), true
		} else {
			inst = sess.put(&instance.Instance{ID: id, Type: instance.TypeRelationship})
		}
	}
	return &relationship{store: s, sess: sess, inst: inst}, ok
}

type relationship struct {
	store *Store
	sess  *Session
	inst  *instance.Instance
}

func (r *relationship) ID() int64 {
	return r.inst.ID
}

func (r *relationship) Refresh(ctx context.Context) error {
	_, err := r.store.Refresh(context.WithValue(ctx, sessionKey{}, r.sess), r.inst)
	return err
}

func (r *relationship) Unmap(ctx context.Context, cascade bool) error {
	key := r.inst.Key()
	if err := r.store.api.Delete(ctx, r.inst.Type, r.inst.ID, r.sess.version(key), cascade); err != nil {
		return err
	}
	r.store.evict(ctx, r.sess, key)
	return nil
}
