package posts

import "sync"

// Listing is the list of posts the list view last showed
type Listing struct {
	mutex      sync.Mutex
	page       int
	totalPages int
	posts      []Post
}

func NewListing(page *Page) *Listing {
	postsCopy := make([]Post, len(page.Posts))
	copy(postsCopy, page.Posts)
	return &Listing{
		page:       page.Page,
		totalPages: page.TotalPages,
		posts:      postsCopy,
	}
}

func (l *Listing) PageNumber() int {
	return l.page
}

func (l *Listing) TotalPages() int {
	return l.totalPages
}

func (l *Listing) Posts() []Post {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	postsCopy := make([]Post, len(l.posts))
	copy(postsCopy, l.posts)
	return postsCopy
}

func (l *Listing) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.posts)
}

// Remove drops the post with the given id; order of the rest is kept
func (l *Listing) Remove(id string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	for i := range l.posts {
		if l.posts[i].ID == id {
			l.posts = append(l.posts[:i], l.posts[i+1:]...)
			return true
		}
	}
	return false
}
