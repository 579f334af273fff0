// Package cache is the durable on-device store the synchronizing repositories reconcile into.
package cache

import (
	"context"
	"fmt"
	"regexp"
	"sort"
)

// Entity families.
const (
	FamilyStations        = "stations"
	FamilyReservations    = "reservations"
	FamilyUsers           = "users"
	FamilyOperatorSession = "operator_sessions"
)

// Entity is anything keyed by a stable identifier.
type Entity interface {
	CacheKey() string
}

// Filter selects entities. A nil Filter matches everything.
type Filter[T Entity] func(T) bool

func (f Filter[T]) match(item T) bool {
	return f == nil || f(item)
}

func none[T Entity](T) bool { return false }

// Store is one entity family. Batch writes are all-or-nothing: on error the prior state is intact.
type Store[T Entity] interface {
	Get(ctx context.Context, id string) (T, bool, error)
	GetAll(ctx context.Context) ([]T, error)
	Upsert(ctx context.Context, items ...T) error
	// ReplaceScope atomically drops every stored entity matching inScope (all of them when nil)
	// and writes items.
	ReplaceScope(ctx context.Context, inScope Filter[T], items []T) error
	Delete(ctx context.Context, ids ...string) error
	// Subscribe streams the filtered snapshot now and after every change until ctx ends.
	Subscribe(ctx context.Context, filter Filter[T]) <-chan []T
}

var familyPattern = regexp.MustCompile(`^[a-z][a-z_]*$`)

func validateFamily(family string) error {
	if !familyPattern.MatchString(family) {
		return fmt.Errorf("cache: invalid family %q", family)
	}
	return nil
}

// Select returns the items matching filter, preserving order.
func Select[T Entity](items []T, filter Filter[T]) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if filter.match(item) {
			out = append(out, item)
		}
	}
	return out
}

func sortByKey[T Entity](items []T) {
	sort.Slice(items, func(i, j int) bool { return items[i].CacheKey() < items[j].CacheKey() })
}

func keysOf[T Entity](items []T) []string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.CacheKey()
	}
	return keys
}
