package posts

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"

	// longer meta descriptions get cut by search engines
	MetaDescriptionMaxLen = 160
)

var (
	ErrPostTitleOrContentEmpty = errors.New("post title or content empty")
	ErrInvalidStatus           = errors.New("post status must be draft or published")
	ErrNameEmpty               = errors.New("name empty")
	ErrUnexpectedResponse      = errors.New("unexpected api response")
)

type Post struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Excerpt         string    `json:"excerpt"`
	MetaDescription string    `json:"metaDescription"`
	Status          string    `json:"status"`
	Categories      []string  `json:"categories"`
	Tags            []string  `json:"tags"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (p *Post) Stats() ContentStats {
	return Stats(p.Content)
}

func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// PostInput is what the editor sends when creating or updating a post
type PostInput struct {
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Excerpt         string   `json:"excerpt"`
	MetaDescription string   `json:"metaDescription"`
	Status          string   `json:"status"`
	Categories      []string `json:"categories"`
	Tags            []string `json:"tags"`
}

func InputFromPost(p *Post) PostInput {
	return PostInput{
		Title:           p.Title,
		Content:         p.Content,
		Excerpt:         p.Excerpt,
		MetaDescription: p.MetaDescription,
		Status:          p.Status,
		Categories:      p.Categories,
		Tags:            p.Tags,
	}
}

// Validate trims the input and checks it before it is sent to the api
func (in *PostInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || strings.TrimSpace(in.Content) == "" {
		return ErrPostTitleOrContentEmpty
	}

	if in.Status == "" {
		in.Status = StatusDraft
	}
	if in.Status != StatusDraft && in.Status != StatusPublished {
		return ErrInvalidStatus
	}

	return nil
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Page struct {
	Posts      []Post
	Page       int
	TotalPages int
}

func (p *Page) HasPrev() bool {
	return p.Page > 1
}

func (p *Page) HasNext() bool {
	return p.Page < p.TotalPages
}
