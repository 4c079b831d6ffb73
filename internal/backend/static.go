package backend

import (
	"context"
	"sync"

	"github.com/hearthchat/hearth/internal/domain"
)

// Static is an in-process Commander backed by a fixed server list. Used by
// the standalone binary (servers defined in a local file) and by tests.
type Static struct {
	mu      sync.RWMutex
	ident   domain.Identity
	servers map[domain.SigningKey]domain.Server
}

func NewStatic(ident domain.Identity, servers []domain.Server) *Static {
	s := &Static{ident: ident, servers: make(map[domain.SigningKey]domain.Server, len(servers))}
	for _, sv := range servers {
		s.servers[sv.SigningKey] = sv
	}
	return s
}

func (s *Static) Identity(ctx context.Context) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident := s.ident
	return &ident, nil
}

func (s *Static) ListServers(ctx context.Context) ([]domain.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Server, 0, len(s.servers))
	for _, sv := range s.servers {
		out = append(out, sv)
	}
	return out, nil
}

func (s *Static) ImportHint(ctx context.Context, key domain.SigningKey) (*domain.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv, ok := s.servers[key]
	if !ok {
		return nil, ErrNoKey
	}
	out := sv
	return &out, nil
}

// PutServer installs or replaces a server entry. Test helper mirroring what
// a hint import does in the real backend.
func (s *Static) PutServer(sv domain.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[sv.SigningKey] = sv
}
