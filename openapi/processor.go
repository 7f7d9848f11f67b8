package openapi

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jrsteele09/datum-mcp-bridge/internal/utils"
)

// Methods kept in the flattened document, in output order.
var Methods = []string{"get", "post", "put", "patch", "delete"}

var (
	apiGroupPattern = regexp.MustCompile(`/apis/([^/]+)`)
	corePattern     = regexp.MustCompile(`/api/`)
)

// Document is the flattened description served to the search profile.
type Document struct {
	Paths map[string]map[string]Operation `json:"paths"`
}

// Operation keeps the fields needed for discovery, with every $ref inlined.
type Operation struct {
	Summary     any      `json:"summary,omitempty"`
	Description any      `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	Parameters  any      `json:"parameters,omitempty"`
	RequestBody any      `json:"requestBody,omitempty"`
	Responses   any      `json:"responses,omitempty"`
}

// ExtractProduct labels a path with its product:
//
//	/apis/iam.miloapis.com/v1alpha1/... -> "iam"
//	/api/v1/...                         -> "core"
//	/accounts/{id}/...                  -> "accounts"
func ExtractProduct(path string) string {
	if m := apiGroupPattern.FindStringSubmatch(path); m != nil {
		return strings.Split(m[1], ".")[0]
	}
	if corePattern.MatchString(path) {
		return "core"
	}
	return strings.Split(strings.TrimLeft(path, "/"), "/")[0]
}

// ResolveRefs returns a copy of v with every local $ref replaced by its
// target. A ref that points back at one of its own ancestors becomes
// {"$circular": ref}. Unresolvable refs become nil.
func ResolveRefs(v any, root map[string]any) any {
	return resolve(v, root, map[string]bool{})
}

func resolve(v any, root map[string]any, ancestors map[string]bool) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = resolve(item, root, ancestors)
		}
		return out
	case map[string]any:
		if ref, ok := t["$ref"].(string); ok {
			if ancestors[ref] {
				return map[string]any{"$circular": ref}
			}
			ancestors[ref] = true
			defer delete(ancestors, ref)
			return resolve(lookup(root, ref), root, ancestors)
		}
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = resolve(item, root, ancestors)
		}
		return out
	default:
		return v
	}
}

func lookup(root map[string]any, ref string) any {
	var cur any = root
	for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		cur = m[part]
	}
	return cur
}

// ProcessSpec flattens a raw OpenAPI document into a Document. The product
// label is prepended to each operation's tags unless already present.
func ProcessSpec(raw map[string]any) Document {
	doc := Document{Paths: map[string]map[string]Operation{}}
	rawPaths, _ := raw["paths"].(map[string]any)

	for path, item := range rawPaths {
		pathItem, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ops := map[string]Operation{}
		product := ExtractProduct(path)

		for _, method := range Methods {
			op, ok := pathItem[method].(map[string]any)
			if !ok {
				continue
			}
			ops[method] = Operation{
				Summary:     op["summary"],
				Description: op["description"],
				Tags:        withProduct(op["tags"], product),
				Parameters:  ResolveRefs(op["parameters"], raw),
				RequestBody: ResolveRefs(op["requestBody"], raw),
				Responses:   ResolveRefs(op["responses"], raw),
			}
		}
		doc.Paths[path] = ops
	}
	return doc
}

func withProduct(rawTags any, product string) []string {
	list, _ := rawTags.([]any)
	tags := utils.ToStringSlice(list)
	if product == "" {
		return tags
	}
	for _, t := range tags {
		if strings.EqualFold(t, product) {
			return tags
		}
	}
	return append([]string{product}, tags...)
}

// Merge adds the paths of src to dst. Later documents win on conflicts.
func (d Document) Merge(src Document) {
	for path, ops := range src.Paths {
		d.Paths[path] = ops
	}
}

// Products lists the product labels of the document, most paths first.
// Ties keep alphabetical order.
func (d Document) Products() []string {
	counts := map[string]int{}
	for path := range d.Paths {
		if product := ExtractProduct(path); product != "" {
			counts[product]++
		}
	}

	products := make([]string, 0, len(counts))
	for p := range counts {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if counts[products[i]] != counts[products[j]] {
			return counts[products[i]] > counts[products[j]]
		}
		return products[i] < products[j]
	})
	return products
}
