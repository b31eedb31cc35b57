package memory

import (
	"context"
	"sync"
)

// Directory is a static user and specialization registry for demo mode and tests.
type Directory struct {
	mu              sync.RWMutex
	users           map[string]struct{}
	specializations map[string]struct{}
}

func NewDirectory() *Directory {
	return &Directory{
		users:           make(map[string]struct{}),
		specializations: make(map[string]struct{}),
	}
}

func (d *Directory) AddUser(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.users[id] = struct{}{}
	}
}

func (d *Directory) AddSpecialization(ids ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		d.specializations[id] = struct{}{}
	}
}

func (d *Directory) UserExists(_ context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[userID]
	return ok, nil
}

func (d *Directory) SpecializationExists(_ context.Context, specializationID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.specializations[specializationID]
	return ok, nil
}
