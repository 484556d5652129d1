package recovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"propmarket/audit"
	"propmarket/identity"
	"propmarket/profile"
)

type setCall struct {
	AccountID   string
	NewPassword string
}

// spyDirectory counts lookups and records every password mutation.
type spyDirectory struct {
	mu          sync.Mutex
	accounts    map[string]string
	lookupErr   error
	lookupDelay time.Duration
	setErr      error
	lookups     int
	sets        []setCall
}

func newSpyDirectory() *spyDirectory {
	return &spyDirectory{accounts: make(map[string]string)}
}

func (d *spyDirectory) LookupAccountID(ctx context.Context, email string) (string, error) {
	d.mu.Lock()
	d.lookups++
	delay := d.lookupDelay
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookupErr != nil {
		return "", d.lookupErr
	}
	id, ok := d.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return "", identity.ErrAccountNotFound
	}
	return id, nil
}

func (d *spyDirectory) SetPassword(_ context.Context, accountID, newPassword string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sets = append(d.sets, setCall{AccountID: accountID, NewPassword: newPassword})
	return d.setErr
}

func (d *spyDirectory) setCalls() []setCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]setCall(nil), d.sets...)
}

func (d *spyDirectory) lookupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}

type fakeRoleLinks struct {
	mu    sync.Mutex
	links map[string]profile.RoleLink
	err   error
}

func (f *fakeRoleLinks) GetRoleLink(_ context.Context, accountID string) (profile.RoleLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return profile.RoleLink{}, f.err
	}
	link, ok := f.links[accountID]
	if !ok {
		return profile.RoleLink{}, profile.ErrRoleLinkNotFound
	}
	return link, nil
}

type fakeProfiles struct {
	mu     sync.Mutex
	owners map[string]profile.Record
	agents map[string]profile.Record
	err    error
}

func (f *fakeProfiles) GetOwner(_ context.Context, id string) (profile.Record, error) {
	return f.get(f.owners, id)
}

func (f *fakeProfiles) GetAgent(_ context.Context, id string) (profile.Record, error) {
	return f.get(f.agents, id)
}

func (f *fakeProfiles) get(records map[string]profile.Record, id string) (profile.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return profile.Record{}, f.err
	}
	rec, ok := records[id]
	if !ok {
		return profile.Record{}, profile.ErrProfileNotFound
	}
	return rec, nil
}

type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (r *captureRecorder) Record(_ context.Context, ev audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *captureRecorder) all() []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Event(nil), r.events...)
}

// memAccounts is an in-memory identity.Repository so tests can drive the real
// directory, including bcrypt and sign-in.
type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]identity.Account
	next     int
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]identity.Account)}
}

func (m *memAccounts) CreateAccount(_ context.Context, email, passwordHash string) (identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return identity.Account{}, identity.ErrDuplicateEmail
		}
	}
	m.next++
	now := time.Now()
	a := identity.Account{
		ID:           fmt.Sprintf("acc-%d", m.next),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memAccounts) GetAccountByEmail(_ context.Context, email string) (identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return identity.Account{}, identity.ErrAccountNotFound
}

func (m *memAccounts) GetAccountByID(_ context.Context, accountID string) (identity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return identity.Account{}, identity.ErrAccountNotFound
	}
	return a, nil
}

func (m *memAccounts) UpdatePasswordHash(_ context.Context, accountID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return identity.ErrAccountNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = time.Now()
	m.accounts[accountID] = a
	return nil
}
