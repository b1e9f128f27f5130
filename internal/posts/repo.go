package posts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/2beens/blogpanel/internal/api"
	"github.com/2beens/blogpanel/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type apiClient interface {
	Do(ctx context.Context, req api.Request, out any) error
}

// Repo wraps the blog api endpoints for posts and their taxonomy.
// Every response is decoded into a declared envelope; an envelope without its
// field fails with ErrUnexpectedResponse.
type Repo struct {
	client   apiClient
	taxonomy *TaxonomyCache
}

func NewRepo(client apiClient, taxonomy *TaxonomyCache) *Repo {
	return &Repo{
		client:   client,
		taxonomy: taxonomy,
	}
}

type postsPageResponse struct {
	Posts      *[]Post `json:"posts"`
	Page       *int    `json:"page"`
	TotalPages *int    `json:"totalPages"`
}

type postResponse struct {
	Post *Post `json:"post"`
}

type categoriesResponse struct {
	Categories *[]Category `json:"categories"`
}

type categoryResponse struct {
	Category *Category `json:"category"`
}

type tagsResponse struct {
	Tags *[]Tag `json:"tags"`
}

type tagResponse struct {
	Tag *Tag `json:"tag"`
}

type nameRequest struct {
	Name string `json:"name"`
}

func missingField(field string) error {
	return fmt.Errorf("%w: missing %q", ErrUnexpectedResponse, field)
}

func postPath(id string) string {
	return "/posts/" + url.PathEscape(id)
}

func (r *Repo) List(ctx context.Context, page int) (_ *Page, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.list")
	span.SetAttributes(attribute.Int("page", page))
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if page < 1 {
		page = 1
	}

	var resp postsPageResponse
	if err := r.client.Do(ctx, api.Request{
		Path: fmt.Sprintf("/posts?page=%d", page),
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Posts == nil {
		return nil, missingField("posts")
	}

	postsPage := &Page{
		Posts:      *resp.Posts,
		Page:       page,
		TotalPages: 1,
	}
	if resp.Page != nil {
		postsPage.Page = *resp.Page
	}
	if resp.TotalPages != nil {
		postsPage.TotalPages = *resp.TotalPages
	}

	return postsPage, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Post, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.get")
	span.SetAttributes(attribute.String("post.id", id))
	defer span.End()

	var resp postResponse
	if err := r.client.Do(ctx, api.Request{Path: postPath(id)}, &resp); err != nil {
		return nil, err
	}
	if resp.Post == nil {
		return nil, missingField("post")
	}

	return resp.Post, nil
}

func (r *Repo) Create(ctx context.Context, input PostInput) (*Post, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.create")
	defer span.End()

	if err := input.Validate(); err != nil {
		return nil, err
	}

	var resp postResponse
	if err := r.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/posts",
		Body:   input,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Post == nil {
		return nil, missingField("post")
	}

	log.Debugf("posts repo: created post %s [%s]", resp.Post.ID, resp.Post.Status)
	return resp.Post, nil
}

func (r *Repo) Update(ctx context.Context, id string, input PostInput) (*Post, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.update")
	span.SetAttributes(attribute.String("post.id", id))
	defer span.End()

	if err := input.Validate(); err != nil {
		return nil, err
	}

	var resp postResponse
	if err := r.client.Do(ctx, api.Request{
		Method: http.MethodPut,
		Path:   postPath(id),
		Body:   input,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.Post == nil {
		return nil, missingField("post")
	}

	return resp.Post, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "postsRepo.delete")
	span.SetAttributes(attribute.String("post.id", id))
	defer span.End()

	return r.client.Do(ctx, api.Request{
		Method: http.MethodDelete,
		Path:   postPath(id),
	}, nil)
}

// DeleteFromListing deletes the post remotely and, only if that succeeded,
// removes it from the listing. The listing is not refetched.
func (r *Repo) DeleteFromListing(ctx context.Context, listing *Listing, id string) error {
	if err := r.Delete(ctx, id); err != nil {
		return err
	}
	if listing != nil && !listing.Remove(id) {
		log.Debugf("posts repo: deleted post %s was not in the listing", id)
	}
	return nil
}

func (r *Repo) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category
	if r.taxonomy.get(categoriesCacheKey, &categories) {
		return categories, nil
	}

	var resp categoriesResponse
	if err := r.client.Do(ctx, api.Request{Path: "/categories"}, &resp); err != nil {
		return nil, err
	}
	if resp.Categories == nil {
		return nil, missingField("categories")
	}

	r.taxonomy.set(categoriesCacheKey, *resp.Categories)
	return *resp.Categories, nil
}

func (r *Repo) AddCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameEmpty
	}

	var resp categoryResponse
	if err := r.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/categories",
		Body:   nameRequest{Name: name},
	}, &resp); err != nil {
		return nil, err
	}
	// the list changed on the server either way
	r.taxonomy.invalidate(categoriesCacheKey)
	if resp.Category == nil {
		return nil, missingField("category")
	}

	return resp.Category, nil
}

func (r *Repo) Tags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if r.taxonomy.get(tagsCacheKey, &tags) {
		return tags, nil
	}

	var resp tagsResponse
	if err := r.client.Do(ctx, api.Request{Path: "/tags"}, &resp); err != nil {
		return nil, err
	}
	if resp.Tags == nil {
		return nil, missingField("tags")
	}

	r.taxonomy.set(tagsCacheKey, *resp.Tags)
	return *resp.Tags, nil
}

func (r *Repo) AddTag(ctx context.Context, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameEmpty
	}

	var resp tagResponse
	if err := r.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/tags",
		Body:   nameRequest{Name: name},
	}, &resp); err != nil {
		return nil, err
	}
	r.taxonomy.invalidate(tagsCacheKey)
	if resp.Tag == nil {
		return nil, missingField("tag")
	}

	return resp.Tag, nil
}
