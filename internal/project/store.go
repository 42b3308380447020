package project

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Store is the session-gated front of the document repository. Every
// operation requires a prior BeginSession from the same caller; otherwise
// it fails with ErrNotAuthenticated.
type Store struct {
	repo          Repository
	defaultDomain string
	logger        Logger

	mu       sync.Mutex
	sessions map[string]string // caller id -> user
}

// NewStore creates a store over a repository. defaultDomain fills in save
// items that carry no domain of their own.
func NewStore(repo Repository, defaultDomain string) *Store {
	return &Store{
		repo:          repo,
		defaultDomain: defaultDomain,
		sessions:      make(map[string]string),
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// BeginSession opens a session for a caller. Credentials are recorded for
// attribution; the repository itself carries no per-user ACLs.
func (s *Store) BeginSession(caller, user, _ string) error {
	if caller == "" {
		return fmt.Errorf("project: session needs a caller id")
	}
	if user == "" {
		return fmt.Errorf("project: session needs a user name")
	}
	s.mu.Lock()
	s.sessions[caller] = user
	s.mu.Unlock()
	s.logger.Info("session opened", "caller", caller, "user", user)
	return nil
}

// EndSession closes the caller's session. Ending an absent session is a
// no-op.
func (s *Store) EndSession(caller string) {
	s.mu.Lock()
	delete(s.sessions, caller)
	s.mu.Unlock()
	s.logger.Info("session closed", "caller", caller)
}

// user returns the session user for a caller, or ErrNotAuthenticated.
func (s *Store) user(caller string) (string, error) {
	s.mu.Lock()
	user, ok := s.sessions[caller]
	s.mu.Unlock()
	if !ok {
		return "", ErrNotAuthenticated
	}
	return user, nil
}

// SaveItems stores a batch of documents on behalf of a caller. Items with
// no domain are placed in the default domain. Per-item outcomes are in the
// returned slice; the batch itself only fails on a dead session or a
// repository fault.
func (s *Store) SaveItems(ctx context.Context, caller string, items []SaveItem) ([]SaveResult, error) {
	user, err := s.user(caller)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Domain == "" {
			items[i].Domain = s.defaultDomain
		}
	}
	results, err := s.repo.SaveItems(ctx, items, user)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if !res.Success {
			s.logger.Warn("save item rejected", "uuid", res.UUID, "reason", res.Reason)
		}
	}
	return results, nil
}

// LoadItems loads the requested documents for a caller.
func (s *Store) LoadItems(ctx context.Context, caller, domain string, refs []LoadRef) ([]LoadedItem, error) {
	if _, err := s.user(caller); err != nil {
		return nil, err
	}
	return s.repo.LoadItems(ctx, s.domainOrDefault(domain), refs)
}

// LoadItemsWithChildren loads the requested documents and their children
// referenced under listTag.
func (s *Store) LoadItemsWithChildren(ctx context.Context, caller, domain string, refs []LoadRef, listTag string) ([]LoadedItem, error) {
	if _, err := s.user(caller); err != nil {
		return nil, err
	}
	return s.repo.LoadItemsWithChildren(ctx, s.domainOrDefault(domain), refs, listTag)
}

// VersionInfo returns revision histories for the requested documents.
func (s *Store) VersionInfo(ctx context.Context, caller, domain string, uuids []string) (map[string]VersionInfo, error) {
	if _, err := s.user(caller); err != nil {
		return nil, err
	}
	return s.repo.VersionInfo(ctx, s.domainOrDefault(domain), uuids)
}

// ListItems lists the latest documents in a domain, optionally filtered by
// item type.
func (s *Store) ListItems(ctx context.Context, caller, domain string, itemTypes []string) ([]ItemInfo, error) {
	if _, err := s.user(caller); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, s.domainOrDefault(domain), itemTypes)
}

// ListDomains lists all domains in the store.
func (s *Store) ListDomains(ctx context.Context, caller string) ([]string, error) {
	if _, err := s.user(caller); err != nil {
		return nil, err
	}
	return s.repo.ListDomains(ctx)
}

func (s *Store) domainOrDefault(domain string) string {
	if domain == "" {
		return s.defaultDomain
	}
	return domain
}
