package semantic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/product"
)

// MaxDescriptionRunes bounds the description sent to the classifier.
const MaxDescriptionRunes = 2000

// BuildSystemPrompt returns the classifier instructions. intro, when not
// empty, is placed on its own line before the rules.
func BuildSystemPrompt(reg *category.Registry, intro string) string {
	var names []string
	for _, c := range reg.Specific() {
		names = append(names, c.Name)
	}
	if len(names) == 0 {
		for _, c := range reg.All() {
			names = append(names, c.Name)
		}
	}

	general := "the general category"
	if gid := reg.GeneralID(); gid != nil {
		if c, ok := reg.Get(*gid); ok {
			general = fmt.Sprintf("'%s'", c.Name)
		}
	}

	var buf bytes.Buffer
	if intro = strings.TrimSpace(intro); intro != "" {
		buf.WriteString(intro)
		buf.WriteString("\n")
	}
	buf.WriteString("You are a product classifier for warranty categories. Given a store product, pick exactly one category id from the provided list, or null if the product is not an electronic device.\n")
	buf.WriteString("Rules:\n")
	fmt.Fprintf(&buf, "- Prefer the most specific matching category among: %s when it fits.\n", strings.Join(names, ", "))
	fmt.Fprintf(&buf, "- Use %s only as a catch-all for products that are clearly electronic devices but do not strongly match a more specific category.\n", general)
	buf.WriteString("- If the product is not an electronic device (e.g., clothing, food, decor), return category_id: null.\n")
	buf.WriteString("- Exactly one category; no multi-select.\n")
	buf.WriteString(`Return strict JSON: {"category_id": number|null} with no extra fields.`)
	return buf.String()
}

type promptCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BuildUserPrompt returns the factual payload describing the product.
func BuildUserPrompt(p product.Product, reg *category.Registry) string {
	cats := make([]promptCategory, 0, reg.Len())
	for _, c := range reg.All() {
		cats = append(cats, promptCategory{ID: c.ID, Name: c.Name})
	}
	catJSON, _ := json.Marshal(cats)
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagJSON, _ := json.Marshal(tags)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "categories: %s\n", catJSON)
	fmt.Fprintf(&buf, "title: %s\n", p.Title)
	fmt.Fprintf(&buf, "vendor: %s\n", p.Vendor)
	fmt.Fprintf(&buf, "product_type: %s\n", p.ProductType)
	fmt.Fprintf(&buf, "tags: %s\n", tagJSON)
	fmt.Fprintf(&buf, "body: %s", truncateRunes(p.Description, MaxDescriptionRunes))
	return buf.String()
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
