package shopify

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/html"

	"github.com/cognicore/protectag/pkg/protectag/catalog"
	"github.com/cognicore/protectag/pkg/protectag/internalerr"
	"github.com/cognicore/protectag/pkg/protectag/product"
)

const productsQuery = `query($first:Int!, $after:String, $query:String!) {
  products(first:$first, after:$after, query:$query) {
    pageInfo { hasNextPage endCursor }
    edges { node { id title vendor productType tags bodyHtml } }
  }
}`

const productTagsQuery = `query($id:ID!) { product(id:$id) { tags } }`

const tagsAddMutation = `mutation($id:ID!, $tags:[String!]!) {
  tagsAdd(id:$id, tags:$tags) { userErrors { field message } }
}`

const tagsRemoveMutation = `mutation($id:ID!, $tags:[String!]!) {
  tagsRemove(id:$id, tags:$tags) { userErrors { field message } }
}`

type productNode struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Vendor      string   `json:"vendor"`
	ProductType string   `json:"productType"`
	Tags        []string `json:"tags"`
	BodyHTML    string   `json:"bodyHtml"`
}

// ProductPage implements catalog.Source.
func (c *Client) ProductPage(ctx context.Context, req catalog.PageRequest) (catalog.Page, error) {
	vars := map[string]any{"first": req.First, "query": req.Query}
	if req.After != "" {
		vars["after"] = req.After
	} else {
		vars["after"] = nil
	}

	var data struct {
		Products struct {
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
			Edges []struct {
				Node productNode `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	if err := c.do(ctx, productsQuery, vars, &data); err != nil {
		return catalog.Page{}, errors.Wrap(err, "products query")
	}

	page := catalog.Page{
		Products:    make([]product.Product, 0, len(data.Products.Edges)),
		HasNextPage: data.Products.PageInfo.HasNextPage,
		EndCursor:   data.Products.PageInfo.EndCursor,
	}
	for _, e := range data.Products.Edges {
		page.Products = append(page.Products, e.Node.toProduct())
	}
	return page, nil
}

func (n productNode) toProduct() product.Product {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return product.Product{
		ID:          n.ID,
		Title:       n.Title,
		Description: StripHTML(n.BodyHTML),
		Vendor:      n.Vendor,
		ProductType: n.ProductType,
		Tags:        tags,
	}
}

// Tags implements reconcile.TagReader.
func (c *Client) Tags(ctx context.Context, productID string) ([]string, error) {
	var data struct {
		Product *struct {
			Tags []string `json:"tags"`
		} `json:"product"`
	}
	if err := c.do(ctx, productTagsQuery, map[string]any{"id": productID}, &data); err != nil {
		return nil, errors.Wrapf(err, "read tags of %s", productID)
	}
	if data.Product == nil {
		return nil, errors.Wrapf(internalerr.ErrNotFound, "product %s", productID)
	}
	return data.Product.Tags, nil
}

// AddTags implements reconcile.TagWriter.
func (c *Client) AddTags(ctx context.Context, productID string, tags []string) error {
	return c.mutateTags(ctx, tagsAddMutation, "tagsAdd", productID, tags)
}

// RemoveTags implements reconcile.TagWriter.
func (c *Client) RemoveTags(ctx context.Context, productID string, tags []string) error {
	return c.mutateTags(ctx, tagsRemoveMutation, "tagsRemove", productID, tags)
}

func (c *Client) mutateTags(ctx context.Context, mutation, field, productID string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	var data map[string]struct {
		UserErrors UserErrors `json:"userErrors"`
	}
	if err := c.do(ctx, mutation, map[string]any{"id": productID, "tags": tags}, &data); err != nil {
		return errors.Wrapf(err, "%s on %s", field, productID)
	}
	if ue := data[field].UserErrors; len(ue) > 0 {
		return errors.Wrapf(ue, "%s on %s", field, productID)
	}
	return nil
}

// StripHTML returns the text content of an HTML fragment.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return strings.Join(strings.Fields(buf.String()), " ")
}
