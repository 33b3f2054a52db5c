package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vrsjns/bearlink-sub000/internal/models"
)

type (
	// Store is the link registry. It exclusively owns durable state;
	// caches layered on top hold disposable copies only.
	//
	// Owner-scoped operations return models.ErrNotFound both for missing
	// records and records owned by someone else.
	Store interface {
		Initialize(ctx context.Context) error
		Create(ctx context.Context, link *models.Link) error
		FindBySlug(ctx context.Context, slug string) (models.Link, error)
		FindByOwner(ctx context.Context, id int64, ownerID string) (models.Link, error)
		UpdateByOwner(ctx context.Context, id int64, ownerID string, patch models.LinkPatch) (models.Link, error)
		DeleteByOwner(ctx context.Context, id int64, ownerID string) (models.Link, error)
		IncrementClicks(ctx context.Context, shortID string) error
		List(ctx context.Context, ownerID string, query models.ListQuery) ([]models.Link, int64, error)
		Ping(ctx context.Context) error
	}

	MemoryStore struct {
		mu     sync.RWMutex
		nextID int64
		links  []models.Link
	}
)

func (store *MemoryStore) Initialize(_ context.Context) error {
	return nil
}

func (store *MemoryStore) Create(_ context.Context, link *models.Link) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for i := range store.links {
		if store.links[i].ShortID == link.ShortID {
			return models.ErrSlugTaken
		}
		if link.CustomAlias != "" &&
			(store.links[i].CustomAlias == link.CustomAlias || store.links[i].ShortID == link.CustomAlias) {
			return models.ErrAliasTaken
		}
	}

	store.nextID++
	link.ID = store.nextID
	link.CreatedAt = time.Now().UTC()
	store.links = append(store.links, *link)
	return nil
}

func (store *MemoryStore) FindBySlug(_ context.Context, slug string) (models.Link, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	for i := range store.links {
		if store.links[i].ShortID == slug || (store.links[i].CustomAlias != "" && store.links[i].CustomAlias == slug) {
			return store.links[i], nil
		}
	}
	return models.Link{}, models.ErrNotFound
}

func (store *MemoryStore) FindByOwner(_ context.Context, id int64, ownerID string) (models.Link, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	idx := store.indexOf(id, ownerID)
	if idx < 0 {
		return models.Link{}, models.ErrNotFound
	}
	return store.links[idx], nil
}

func (store *MemoryStore) UpdateByOwner(_ context.Context, id int64, ownerID string, patch models.LinkPatch) (models.Link, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	idx := store.indexOf(id, ownerID)
	if idx < 0 {
		return models.Link{}, models.ErrNotFound
	}

	if patch.CustomAlias != nil && *patch.CustomAlias != "" {
		for i := range store.links {
			if i == idx {
				continue
			}
			if store.links[i].CustomAlias == *patch.CustomAlias || store.links[i].ShortID == *patch.CustomAlias {
				return models.Link{}, models.ErrAliasTaken
			}
		}
	}

	applyPatch(&store.links[idx], patch)
	return store.links[idx], nil
}

func (store *MemoryStore) DeleteByOwner(_ context.Context, id int64, ownerID string) (models.Link, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	idx := store.indexOf(id, ownerID)
	if idx < 0 {
		return models.Link{}, models.ErrNotFound
	}

	deleted := store.links[idx]
	store.links = append(store.links[:idx], store.links[idx+1:]...)
	return deleted, nil
}

func (store *MemoryStore) IncrementClicks(_ context.Context, shortID string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for i := range store.links {
		if store.links[i].ShortID == shortID {
			store.links[i].Clicks++
			return nil
		}
	}
	return models.ErrNotFound
}

func (store *MemoryStore) List(_ context.Context, ownerID string, query models.ListQuery) ([]models.Link, int64, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	now := time.Now()
	var matched []models.Link
	for i := range store.links {
		link := store.links[i]
		if link.UserID != ownerID {
			continue
		}
		if query.Search != "" && !matchesSearch(&link, query.Search) {
			continue
		}
		if query.Tag != "" && !hasTag(link.Tags, query.Tag) {
			continue
		}
		if query.Expired != nil && link.Expired(now) != *query.Expired {
			continue
		}
		matched = append(matched, link)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	start := query.Offset()
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + query.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (store *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func (store *MemoryStore) indexOf(id int64, ownerID string) int {
	for i := range store.links {
		if store.links[i].ID == id && store.links[i].UserID == ownerID {
			return i
		}
	}
	return -1
}

func matchesSearch(link *models.Link, search string) bool {
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(link.OriginalURL), search) ||
		strings.Contains(strings.ToLower(link.CustomAlias), search)
}

func hasTag(tags models.StringList, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func applyPatch(link *models.Link, patch models.LinkPatch) {
	if patch.OriginalURL != nil {
		link.OriginalURL = *patch.OriginalURL
	}
	if patch.CustomAlias != nil {
		link.CustomAlias = *patch.CustomAlias
	}
	if patch.RedirectType != nil {
		link.RedirectType = *patch.RedirectType
	}
	if patch.SetExpiresAt {
		link.ExpiresAt = patch.ExpiresAt
	}
	if patch.SetPassword {
		if patch.PasswordHash == nil {
			link.PasswordHash = ""
		} else {
			link.PasswordHash = *patch.PasswordHash
		}
	}
	if patch.Tags != nil {
		link.Tags = *patch.Tags
	}
	if patch.UTMParams != nil {
		link.UTMParams = *patch.UTMParams
	}
	if patch.RequireSignature != nil {
		link.RequireSignature = *patch.RequireSignature
	}
}
