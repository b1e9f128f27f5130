package panel

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"slices"

	"github.com/2beens/blogpanel/internal/api"
	"github.com/2beens/blogpanel/internal/auth"
	"github.com/2beens/blogpanel/internal/posts"
	"github.com/2beens/blogpanel/pkg"

	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// staticHandler serves the embedded assets under /static/
func staticHandler() http.Handler {
	return http.FileServer(http.FS(staticFS))
}

var templateFuncs = template.FuncMap{
	"contains": slices.Contains[[]string, string],
	"add": func(a, b int) int {
		return a + b
	},
}

func parseTemplates() (*template.Template, error) {
	return template.New("panel").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
}

type loginView struct {
	Error string
	Email string
}

type listView struct {
	Error      string
	Notice     string
	Posts      []posts.Post
	Page       int
	TotalPages int
	HasPrev    bool
	HasNext    bool
}

type editorView struct {
	Error      string
	Notice     string
	PostID     string
	Input      posts.PostInput
	Stats      posts.ContentStats
	Categories []posts.Category
	Tags       []posts.Tag
	Statuses   []string
	MetaMaxLen int
}

func (v *editorView) IsNew() bool {
	return v.PostID == ""
}

func (v *editorView) MetaTooLong() bool {
	return len(v.Input.MetaDescription) > v.MetaMaxLen
}

// render executes the whole template first, so a failing template never
// leaves a half written page
func (handler *Handler) render(w http.ResponseWriter, name string, data any, statusCode int) {
	var buf bytes.Buffer
	if err := handler.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Errorf("render %s: %s", name, err)
		http.Error(w, "render page failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.HTML, buf.Bytes(), statusCode)
}

// userMessage turns an error into something the view can show
func userMessage(err error) string {
	var (
		authErr    *api.AuthError
		httpErr    *api.HttpError
		netErr     *api.NetworkError
		schemaErr  *api.SchemaError
		sessionErr *api.SessionError
	)
	switch {
	case errors.As(err, &authErr):
		return authErr.Message
	case errors.As(err, &httpErr):
		return httpErr.Message
	case errors.As(err, &netErr):
		return "Blog API not reachable, try again"
	case errors.As(err, &schemaErr), errors.Is(err, posts.ErrUnexpectedResponse):
		return "Unexpected response from the blog API"
	case errors.As(err, &sessionErr):
		return "Session storage not available, try again"
	case errors.Is(err, auth.ErrMissingCredentials):
		return "Email and password are required"
	case errors.Is(err, posts.ErrPostTitleOrContentEmpty):
		return "Title and content are required"
	case errors.Is(err, posts.ErrInvalidStatus):
		return "Status must be draft or published"
	case errors.Is(err, posts.ErrNameEmpty):
		return "Name is required"
	default:
		return "Something went wrong"
	}
}

func statusFor(err error) int {
	var (
		httpErr    *api.HttpError
		sessionErr *api.SessionError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Status
	case errors.As(err, &sessionErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, auth.ErrMissingCredentials),
		errors.Is(err, posts.ErrPostTitleOrContentEmpty),
		errors.Is(err, posts.ErrInvalidStatus),
		errors.Is(err, posts.ErrNameEmpty):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
