package panel

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/2beens/blogpanel/internal/posts"
	"github.com/2beens/blogpanel/internal/router"
	"github.com/2beens/blogpanel/internal/session"
	"github.com/2beens/blogpanel/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

func (handler *Handler) currentListing(ctx context.Context) *posts.Listing {
	id, ok := session.IDFromContext(ctx)
	if !ok {
		return nil
	}
	handler.listingMutex.Lock()
	defer handler.listingMutex.Unlock()
	return handler.listings[id]
}

// setListing keeps the listing shown to the client session; nil forgets it
func (handler *Handler) setListing(ctx context.Context, listing *posts.Listing) {
	id, ok := session.IDFromContext(ctx)
	if !ok {
		return
	}
	handler.listingMutex.Lock()
	defer handler.listingMutex.Unlock()
	if listing == nil {
		delete(handler.listings, id)
		return
	}
	handler.listings[id] = listing
}

func listViewFrom(listing *posts.Listing) listView {
	if listing == nil {
		return listView{Page: 1, TotalPages: 1}
	}
	page := listing.PageNumber()
	totalPages := listing.TotalPages()
	return listView{
		Posts:      listing.Posts(),
		Page:       page,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := 1
	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		var err error
		page, err = strconv.Atoi(pageParam)
		if err != nil || page < 1 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
	}

	postsPage, err := handler.repo.List(r.Context(), page)
	if router.FollowNavigation(w, r) {
		return
	}
	if err != nil {
		log.Errorf("list posts, page %d: %s", page, err)
		// keep showing what was there before
		view := listViewFrom(handler.currentListing(r.Context()))
		view.Error = userMessage(err)
		handler.render(w, "posts.html", view, statusFor(err))
		return
	}

	listing := posts.NewListing(postsPage)
	handler.setListing(r.Context(), listing)

	view := listViewFrom(listing)
	if r.URL.Query().Get("deleted") != "" {
		view.Notice = "Post deleted"
	}
	handler.render(w, "posts.html", view, http.StatusOK)
}

// handleDelete removes the post remotely and from the shown listing, without
// fetching the list again
func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	listing := handler.currentListing(r.Context())

	err := handler.repo.DeleteFromListing(r.Context(), listing, id)
	if router.FollowNavigation(w, r) {
		return
	}

	if pkg.WantsJSON(r) {
		if err != nil {
			log.Errorf("delete post %s: %s", id, err)
			pkg.WriteJSON(w, map[string]string{"error": userMessage(err)}, statusFor(err))
			return
		}
		remaining := 0
		if listing != nil {
			remaining = listing.Len()
		}
		pkg.WriteJSON(w, map[string]any{
			"deleted":   id,
			"remaining": remaining,
		}, http.StatusOK)
		return
	}

	view := listViewFrom(listing)
	if err != nil {
		log.Errorf("delete post %s: %s", id, err)
		view.Error = userMessage(err)
		handler.render(w, "posts.html", view, statusFor(err))
		return
	}
	view.Notice = "Post deleted"
	handler.render(w, "posts.html", view, http.StatusOK)
}

// loadTaxonomy fills the categories and tags of the editor; a failure there
// only shows a message, the post itself can still be edited
func (handler *Handler) loadTaxonomy(r *http.Request, view *editorView) {
	categories, err := handler.repo.Categories(r.Context())
	if err != nil {
		log.Warnf("editor, load categories: %s", err)
		view.Error = userMessage(err)
	}
	tags, err := handler.repo.Tags(r.Context())
	if err != nil {
		log.Warnf("editor, load tags: %s", err)
		view.Error = userMessage(err)
	}
	view.Categories = categories
	view.Tags = tags
}

func newEditorView(postID string, input posts.PostInput) *editorView {
	return &editorView{
		PostID:     postID,
		Input:      input,
		Stats:      posts.Stats(input.Content),
		Statuses:   []string{posts.StatusDraft, posts.StatusPublished},
		MetaMaxLen: posts.MetaDescriptionMaxLen,
	}
}

func (handler *Handler) handleEditorNew(w http.ResponseWriter, r *http.Request) {
	view := newEditorView("", posts.PostInput{Status: posts.StatusDraft})
	handler.loadTaxonomy(r, view)
	if router.FollowNavigation(w, r) {
		return
	}
	handler.render(w, "editor.html", view, http.StatusOK)
}

func (handler *Handler) handleEditorEdit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	post, err := handler.repo.Get(r.Context(), id)
	if router.FollowNavigation(w, r) {
		return
	}
	if err != nil {
		log.Errorf("editor, get post %s: %s", id, err)
		view := listViewFrom(handler.currentListing(r.Context()))
		view.Error = userMessage(err)
		handler.render(w, "posts.html", view, statusFor(err))
		return
	}

	view := newEditorView(post.ID, posts.InputFromPost(post))
	handler.loadTaxonomy(r, view)
	if router.FollowNavigation(w, r) {
		return
	}
	if r.URL.Query().Get("saved") != "" {
		view.Notice = "Saved"
	}
	handler.render(w, "editor.html", view, http.StatusOK)
}

func inputFromForm(r *http.Request) posts.PostInput {
	return posts.PostInput{
		Title:           r.Form.Get("title"),
		Content:         r.Form.Get("content"),
		Excerpt:         r.Form.Get("excerpt"),
		MetaDescription: r.Form.Get("metaDescription"),
		Status:          r.Form.Get("status"),
		Categories:      nonEmpty(r.Form["categories"]),
		Tags:            nonEmpty(r.Form["tags"]),
	}
}

func nonEmpty(values []string) []string {
	var res []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			res = append(res, v)
		}
	}
	return res
}

func (handler *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	handler.savePost(w, r, "")
}

func (handler *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	handler.savePost(w, r, mux.Vars(r)["id"])
}

func (handler *Handler) savePost(w http.ResponseWriter, r *http.Request, id string) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("save post, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	input := inputFromForm(r)

	var (
		saved *posts.Post
		err   error
	)
	if id == "" {
		saved, err = handler.repo.Create(r.Context(), input)
	} else {
		saved, err = handler.repo.Update(r.Context(), id, input)
	}
	if router.FollowNavigation(w, r) {
		return
	}
	if err != nil {
		log.Errorf("save post [%s]: %s", id, err)
		// the editor keeps what was typed
		view := newEditorView(id, input)
		handler.loadTaxonomy(r, view)
		if router.FollowNavigation(w, r) {
			return
		}
		view.Error = userMessage(err)
		handler.render(w, "editor.html", view, statusFor(err))
		return
	}

	http.Redirect(w, r, router.EditorFor(url.PathEscape(saved.ID))+"?saved=1", http.StatusSeeOther)
}

func (handler *Handler) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	handler.addTaxonomy(w, r, "category", func(name string) (any, error) {
		return handler.repo.AddCategory(r.Context(), name)
	})
}

func (handler *Handler) handleAddTag(w http.ResponseWriter, r *http.Request) {
	handler.addTaxonomy(w, r, "tag", func(name string) (any, error) {
		return handler.repo.AddTag(r.Context(), name)
	})
}

func (handler *Handler) addTaxonomy(w http.ResponseWriter, r *http.Request, kind string, add func(name string) (any, error)) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	added, err := add(r.Form.Get("name"))
	if router.FollowNavigation(w, r) {
		return
	}
	if err != nil {
		log.Errorf("add %s: %s", kind, err)
		if pkg.WantsJSON(r) {
			pkg.WriteJSON(w, map[string]string{"error": userMessage(err)}, statusFor(err))
			return
		}
		http.Error(w, userMessage(err), statusFor(err))
		return
	}

	if pkg.WantsJSON(r) {
		pkg.WriteJSON(w, map[string]any{kind: added}, http.StatusCreated)
		return
	}
	http.Redirect(w, r, returnTo(r), http.StatusSeeOther)
}

// returnTo only allows local editor paths, never an absolute url
func returnTo(r *http.Request) string {
	target := r.Form.Get("return_to")
	if strings.HasPrefix(target, router.ViewEditor.Path()) && !strings.Contains(target, "//") {
		return target
	}
	return router.ViewEditor.Path()
}
