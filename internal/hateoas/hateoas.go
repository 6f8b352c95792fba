// Package hateoas turns entities into representations carrying
// navigational links.
package hateoas

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

const (
	RelSelf   = "self"
	RelList   = "list"
	RelAdd    = "add"
	RelUpdate = "update"
	RelRemove = "remove"
)

type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// Resource renders the entity's fields followed by a "links" array.
type Resource[T any] struct {
	Content T
	Links   []Link
}

func (r Resource[T]) MarshalJSON() ([]byte, error) {
	content, err := json.Marshal(r.Content)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(content, &fields); err != nil {
		return nil, fmt.Errorf("resource content must be an object: %w", err)
	}
	links, err := json.Marshal(r.Links)
	if err != nil {
		return nil, err
	}
	fields["links"] = links
	return json.Marshal(fields)
}

func (r *Resource[T]) Add(links ...Link) {
	r.Links = append(r.Links, links...)
}

// Assembler builds resources for entities exposed under a collection path.
type Assembler[T any] struct {
	path string
	id   func(*T) string
}

func NewAssembler[T any](collectionPath string, id func(*T) string) *Assembler[T] {
	return &Assembler[T]{path: "/" + strings.Trim(collectionPath, "/"), id: id}
}

// ToResource returns the entity with its self link.
func (a *Assembler[T]) ToResource(base string, entity *T) (*Resource[T], error) {
	if entity == nil {
		return nil, domain.ErrNotFound
	}
	return &Resource[T]{
		Content: *entity,
		Links:   []Link{{Rel: RelSelf, Href: a.ItemURL(base, entity)}},
	}, nil
}

// ToResources fails with domain.ErrNotFound for an empty collection.
func (a *Assembler[T]) ToResources(base string, entities []T) ([]Resource[T], error) {
	if len(entities) == 0 {
		return nil, domain.ErrNotFound
	}
	resources := make([]Resource[T], 0, len(entities))
	for i := range entities {
		r, err := a.ToResource(base, &entities[i])
		if err != nil {
			return nil, err
		}
		resources = append(resources, *r)
	}
	return resources, nil
}

// CollectionLinks returns the list, add, update and remove links of a single entity.
func (a *Assembler[T]) CollectionLinks(base string, entity *T, rels ...string) []Link {
	hrefs := map[string]string{
		RelList:   a.CollectionURL(base),
		RelAdd:    a.CollectionURL(base),
		RelUpdate: a.CollectionURL(base),
		RelRemove: a.ItemURL(base, entity),
	}
	links := make([]Link, 0, len(rels))
	for _, rel := range rels {
		if href, ok := hrefs[rel]; ok {
			links = append(links, Link{Rel: rel, Href: href})
		}
	}
	return links
}

func (a *Assembler[T]) CollectionURL(base string) string {
	return strings.TrimSuffix(base, "/") + a.path
}

func (a *Assembler[T]) ItemURL(base string, entity *T) string {
	return a.CollectionURL(base) + "/" + a.id(entity)
}

// BaseURL derives scheme and host from the request, preferring the
// forwarding headers set by the gateway.
func BaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}
