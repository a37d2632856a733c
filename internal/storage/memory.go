package storage

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"user_service/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStorage keeps users in process memory. Ids are ObjectID hex strings
// so it accepts exactly the ids the Mongo backend does.
type MemoryStorage struct {
	mu    sync.RWMutex
	users []models.User
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) InsertUser(_ context.Context, user models.User) (models.InsertResult, error) {
	user.ID = primitive.NewObjectID().Hex()
	user.Fields = maps.Clone(user.Fields)

	m.mu.Lock()
	m.users = append(m.users, user)
	m.mu.Unlock()

	return models.InsertResult{Acknowledged: true, InsertedID: user.ID}, nil
}

func (m *MemoryStorage) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, len(m.users))
	copy(users, m.users)
	return users, nil
}

func (m *MemoryStorage) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
}

func (m *MemoryStorage) TouchLastLogin(_ context.Context, email string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.users {
		if m.users[i].Email == email {
			t := at
			m.users[i].LastLogin = &t
			return nil
		}
	}
	return nil
}

func (m *MemoryStorage) SetStatus(_ context.Context, ids []string, status models.Status) (models.UpdateResult, error) {
	const op = "storage.SetStatus"

	set, err := idSet(ids)
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	res := models.UpdateResult{Acknowledged: true}
	for i := range m.users {
		if _, ok := set[m.users[i].ID]; !ok {
			continue
		}
		res.MatchedCount++
		if m.users[i].Status != status {
			m.users[i].Status = status
			res.ModifiedCount++
		}
	}

	return res, nil
}

func (m *MemoryStorage) DeleteUsers(_ context.Context, ids []string) (models.DeleteResult, error) {
	const op = "storage.DeleteUsers"

	set, err := idSet(ids)
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.users[:0]
	var deleted int64
	for _, user := range m.users {
		if _, ok := set[user.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, user)
	}
	m.users = kept

	return models.DeleteResult{Acknowledged: true, DeletedCount: deleted}, nil
}

func (m *MemoryStorage) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryStorage) Close(_ context.Context) error {
	return nil
}

func idSet(ids []string) (map[string]struct{}, error) {
	objectIDs, err := parseObjectIDs(ids)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(objectIDs))
	for _, oid := range objectIDs {
		set[oid.Hex()] = struct{}{}
	}
	return set, nil
}
