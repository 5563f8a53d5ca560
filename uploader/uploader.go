// Package uploader pushes crawled products into a WooCommerce store over
// its REST API. Images are uploaded to the media library first so the
// product can reference them by attachment ID.
package uploader

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/webshop-tools/go-product-feed/config"
	"github.com/webshop-tools/go-product-feed/models"
)

const (
	productsPath = "/wp-json/wc/v3/products"
	mediaPath    = "/wp-json/wp/v2/media"

	// shortDescriptionLimit caps the auto-derived short description.
	shortDescriptionLimit = 100

	maxResponseBody = 1 << 20
)

var nonPriceChars = regexp.MustCompile(`[^\d.,]`)

// Client talks to one WooCommerce store with basic auth credentials.
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewClient builds a store client. TLS verification is dropped when the
// store's host appears on the configured SSL denylist.
func NewClient(cfg *config.Config, baseURL, username, password string) (*Client, error) {
	trimmed := strings.TrimRight(baseURL, "/")
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid store URL %q", baseURL)
	}

	verify := cfg.VerifySSL
	for _, domain := range cfg.SSLDisabledDomains {
		if strings.Contains(parsed.Host, domain) {
			verify = false
			break
		}
	}

	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if !verify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL:  trimmed,
		username: username,
		password: password,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}, nil
}

// SetTransport substitutes the HTTP transport. Tests use this.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.client.Transport = rt
}

// NormalizePrice strips currency symbols and whitespace from a raw price
// string and converts decimal commas to dots. An empty price becomes "0".
func NormalizePrice(price string) string {
	if price == "" {
		return "0"
	}
	cleaned := nonPriceChars.ReplaceAllString(price, "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return "0"
	}
	return cleaned
}

// ShortDescription derives the product card blurb: descriptions over the
// limit are cut at the limit and suffixed with an ellipsis.
func ShortDescription(description string) string {
	runes := []rune(description)
	if len(runes) <= shortDescriptionLimit {
		return description
	}
	return string(runes[:shortDescriptionLimit]) + "..."
}

type categoryRef struct {
	ID int `json:"id"`
}

type imageRef struct {
	ID int `json:"id"`
}

type productPayload struct {
	Name             string        `json:"name"`
	Type             string        `json:"type"`
	RegularPrice     string        `json:"regular_price"`
	Description      string        `json:"description"`
	ShortDescription string        `json:"short_description"`
	Categories       []categoryRef `json:"categories"`
	Images           []imageRef    `json:"images"`
}

// Upload creates one product in the store and returns its remote ID. The
// product image, when present, is uploaded first; an image failure degrades
// to a product without images rather than failing the upload.
func (c *Client) Upload(ctx context.Context, product *models.Product, categoryID int) (int, error) {
	name := product.Title
	if name == "" {
		name = "Untitled Product"
	}

	payload := productPayload{
		Name:             name,
		Type:             "simple",
		RegularPrice:     NormalizePrice(product.Price),
		Description:      product.Description,
		ShortDescription: ShortDescription(product.Description),
		Categories:       []categoryRef{{ID: categoryID}},
		Images:           []imageRef{},
	}

	if product.ImageURL != "" {
		mediaID, err := c.UploadImage(ctx, product.ImageURL, product.Title)
		if err != nil {
			slog.Warn("image upload failed, continuing without image",
				slog.String("image_url", product.ImageURL),
				slog.Any("error", err),
			)
		} else {
			payload.Images = append(payload.Images, imageRef{ID: mediaID})
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode product: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+productsPath, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build product request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		ID int `json:"id"`
	}
	if err := c.do(req, &created); err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return created.ID, nil
}

// UploadImage downloads an image and posts it to the store's media library,
// returning the attachment ID.
func (c *Client) UploadImage(ctx context.Context, imageURL, title string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build image request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download image: http status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read image: %w", err)
	}

	upload, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+mediaPath, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("build media request: %w", err)
	}
	upload.SetBasicAuth(c.username, c.password)
	upload.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", imageFilename(title)))
	upload.Header.Set("Content-Type", "image/jpeg")

	var media struct {
		ID int `json:"id"`
	}
	if err := c.do(upload, &media); err != nil {
		return 0, fmt.Errorf("upload media: %w", err)
	}
	return media.ID, nil
}

// imageFilename slugifies a title into a media filename, truncated to keep
// the attachment slug manageable.
func imageFilename(title string) string {
	if title == "" {
		return "product-image.jpg"
	}
	slug := strings.ReplaceAll(strings.ToLower(title), " ", "-")
	if runes := []rune(slug); len(runes) > 50 {
		slug = string(runes[:50])
	}
	return slug + ".jpg"
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Result summarises a batch upload.
type Result struct {
	Uploaded int
	Failed   int
}

// UploadAll pushes every product in the batch, containing failures per
// product so one rejected record never aborts the rest.
func (c *Client) UploadAll(ctx context.Context, products []*models.Product, categoryID int) (Result, error) {
	var result Result
	for _, product := range products {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		id, err := c.Upload(ctx, product, categoryID)
		if err != nil {
			result.Failed++
			slog.Error("product upload failed",
				slog.String("title", product.Title),
				slog.Any("error", err),
			)
			continue
		}
		result.Uploaded++
		slog.Info("product uploaded",
			slog.String("title", product.Title),
			slog.Int("remote_id", id),
		)
	}
	return result, nil
}
