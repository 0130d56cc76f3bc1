package postcache

// DefaultPageSize is the page size used when a caller asks for a page size below 1.
const DefaultPageSize = 10

// Paginator holds one page of posts and the information needed to render page links: the total number of
// pages, the current page, the next and previous pages, the page size, whether more posts follow this page
// and the total number of active posts.
type Paginator struct {
	Posts       []*Post
	TotalPages  int
	CurrentPage int
	NextPage    int
	PrevPage    int
	PageSize    int
	HasMore     bool // HasMore is true when posts exist beyond this page
	HasPrev     bool
	HasPosts    bool
	TotalPosts  int
}

// NewPaginator returns a Paginator for posts, the page at currentPage of a collection of total posts.
func NewPaginator(posts []*Post, total, currentPage, pageSize int) Paginator {
	currentPage, pageSize = normalizePage(currentPage, pageSize)

	totalPages := (total + pageSize - 1) / pageSize
	nextPage := currentPage + 1
	prevPage := currentPage - 1
	hasMore := total > (currentPage-1)*pageSize+pageSize

	if nextPage > totalPages {
		nextPage = max(totalPages, 1)
	}

	if prevPage < 1 {
		prevPage = 1
	}

	return Paginator{
		Posts:       posts,
		TotalPages:  totalPages,
		CurrentPage: currentPage,
		NextPage:    nextPage,
		PrevPage:    prevPage,
		PageSize:    pageSize,
		HasMore:     hasMore,
		HasPrev:     currentPage > 1,
		HasPosts:    len(posts) > 0,
		TotalPosts:  total,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// paginationBounds calculates the start and end indices of a 1-based page.
// Both are clamped to totalItems, so a page past the end is empty.
func paginationBounds(pageNum, pageSize, totalItems int) (start, end int) {
	start = min((pageNum-1)*pageSize, totalItems)
	end = min(start+pageSize, totalItems)
	return start, end
}
