package archive

import "context"

// Paginator walks the pages of one query. The cursor starts at 1 and moves
// forward by exactly one page after each successful request.
type Paginator struct {
	searcher PageSearcher
	query    Query
	cursor   int
}

func NewPaginator(searcher PageSearcher, query Query) *Paginator {
	return &Paginator{searcher: searcher, query: query, cursor: 1}
}

// Next requests the page at the cursor. On error the cursor stays put.
func (paginator *Paginator) Next(ctx context.Context) (Page, error) {
	page, err := paginator.searcher.SearchPage(ctx, paginator.query, paginator.cursor)
	if err != nil {
		return Page{}, err
	}
	page.Number = paginator.cursor
	paginator.cursor++
	return page, nil
}

// Cursor is the number of the next page to be requested.
func (paginator *Paginator) Cursor() int {
	return paginator.cursor
}
