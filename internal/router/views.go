package router

// View is a page of the panel, identified by its path
type View string

const (
	ViewLogin  View = "/login"
	ViewPosts  View = "/"
	ViewEditor View = "/editor"
)

func (v View) Path() string {
	return string(v)
}

// EditorFor is the editor view of an existing post
func EditorFor(postID string) string {
	return ViewEditor.Path() + "/" + postID
}
