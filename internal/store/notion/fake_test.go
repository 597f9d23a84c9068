package notion

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeAPI is an in-memory stand-in for the subset of the Notion API the store uses.
type fakeAPI struct {
	t      *testing.T
	mu     sync.Mutex
	nextID int

	databases map[string]map[string]any // id -> database object
	pages     map[string]map[string]any // id -> page object
	order     []string
	requests  []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{
		t:         t,
		databases: make(map[string]map[string]any),
		pages:     make(map[string]map[string]any),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) id() string {
	f.nextID++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", f.nextID)
}

func (f *fakeAPI) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) addDatabase(parent, title string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id()
	f.databases[id] = map[string]any{
		"object":     "database",
		"id":         id,
		"parent":     map[string]any{"type": "page_id", "page_id": parent},
		"title":      []any{map[string]any{"plain_text": title}},
		"properties": map[string]any{},
	}
	return id
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if r.Header.Get("Authorization") != "Bearer secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "unauthorized", "message": "bad token"})
		return
	}
	if r.Header.Get("Notion-Version") != APIVersion {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": "missing_version", "message": "no version"})
		return
	}

	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/search":
		var results []any
		for _, db := range f.databases {
			results = append(results, db)
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results, "has_more": false})

	case r.Method == http.MethodPost && r.URL.Path == "/databases":
		id := f.id()
		parent := body["parent"].(map[string]any)
		f.databases[id] = map[string]any{
			"object":     "database",
			"id":         id,
			"parent":     parent,
			"title":      plainTitle(body["title"]),
			"properties": body["properties"],
		}
		writeJSON(w, http.StatusOK, f.databases[id])

	case len(parts) == 2 && parts[0] == "databases":
		db, ok := f.databases[parts[1]]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"code": "object_not_found", "message": "no database"})
			return
		}
		if r.Method == http.MethodPatch {
			props := db["properties"].(map[string]any)
			for k, v := range body["properties"].(map[string]any) {
				props[k] = v
			}
		}
		writeJSON(w, http.StatusOK, db)

	case len(parts) == 3 && parts[0] == "databases" && parts[2] == "query":
		if _, ok := f.databases[parts[1]]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"code": "object_not_found", "message": "no database"})
			return
		}
		var results []any
		for _, id := range f.order {
			p := f.pages[id]
			if p["archived"] == true || p["parent"].(map[string]any)["database_id"] != parts[1] {
				continue
			}
			if filter, ok := body["filter"].(map[string]any); ok && !matchesFilter(p, filter) {
				continue
			}
			results = append(results, p)
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results, "has_more": false, "next_cursor": nil})

	case r.Method == http.MethodPost && r.URL.Path == "/pages":
		id := f.id()
		p := map[string]any{
			"object":     "page",
			"id":         id,
			"archived":   false,
			"parent":     map[string]any{"type": "database_id", "database_id": body["parent"].(map[string]any)["database_id"]},
			"properties": responseProperties(body["properties"].(map[string]any)),
		}
		f.pages[id] = p
		f.order = append(f.order, id)
		writeJSON(w, http.StatusOK, p)

	case len(parts) == 2 && parts[0] == "pages":
		p, ok := f.pages[parts[1]]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"code": "object_not_found", "message": "no page"})
			return
		}
		if r.Method == http.MethodPatch {
			if archived, ok := body["archived"].(bool); ok {
				p["archived"] = archived
			}
			if props, ok := body["properties"].(map[string]any); ok {
				stored := p["properties"].(map[string]any)
				for k, v := range responseProperties(props) {
					stored[k] = v
				}
			}
		}
		writeJSON(w, http.StatusOK, p)

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"code": "invalid_request_url", "message": r.URL.Path})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func plainTitle(raw any) []any {
	var out []any
	parts, _ := raw.([]any)
	for _, p := range parts {
		content := p.(map[string]any)["text"].(map[string]any)["content"]
		out = append(out, map[string]any{"plain_text": content})
	}
	return out
}

// responseProperties turns request property values into the shape the API
// returns: every value carries its type and text carries plain_text.
func responseProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for name, raw := range props {
		value := raw.(map[string]any)
		for kind, v := range value {
			converted := v
			if kind == "title" || kind == "rich_text" {
				converted = plainTitle(v)
				if converted == nil {
					converted = []any{}
				}
			}
			if kind == "date" && v != nil {
				start := v.(map[string]any)["start"].(string)
				if len(start) > 10 {
					// The API echoes instants with milliseconds and an offset.
					start = strings.TrimSuffix(start, "Z") + ".000+00:00"
				}
				converted = map[string]any{"start": start, "end": nil}
			}
			out[name] = map[string]any{"type": kind, kind: converted}
		}
	}
	return out
}

func matchesFilter(p map[string]any, filter map[string]any) bool {
	prop, ok := p["properties"].(map[string]any)[filter["property"].(string)].(map[string]any)
	if !ok {
		return false
	}
	if rel, ok := filter["relation"].(map[string]any); ok {
		refs, _ := prop["relation"].([]any)
		for _, ref := range refs {
			if ref.(map[string]any)["id"] == rel["contains"] {
				return true
			}
		}
		return false
	}
	for _, kind := range []string{"title", "rich_text"} {
		if cond, ok := filter[kind].(map[string]any); ok {
			var b strings.Builder
			parts, _ := prop[kind].([]any)
			for _, part := range parts {
				b.WriteString(part.(map[string]any)["plain_text"].(string))
			}
			return b.String() == cond["equals"]
		}
	}
	if cond, ok := filter["select"].(map[string]any); ok {
		sel, _ := prop["select"].(map[string]any)
		return sel != nil && sel["name"] == cond["equals"]
	}
	return false
}
