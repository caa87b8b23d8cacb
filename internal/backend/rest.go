package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// singleObjectAccept makes the table API return (and demand) exactly one
// row instead of an array.
const singleObjectAccept = "application/vnd.pgrst.object+json"

// remoteTable implements Table against the project's table API.
type remoteTable struct {
	c    *remoteClient
	name string
}

func (t *remoteTable) path() string {
	return "/rest/v1/" + t.name
}

func (t *remoteTable) SelectSingle(ctx context.Context, column, value string, dest any) error {
	query := url.Values{
		"select": {"*"},
		column:   {"eq." + value},
	}
	header := http.Header{"Accept": {singleObjectAccept}}
	return t.c.do(ctx, http.MethodGet, t.path(), query, header, nil, dest)
}

func (t *remoteTable) SelectLimit(ctx context.Context, limit int, dest any) error {
	query := url.Values{
		"select": {"*"},
		"limit":  {strconv.Itoa(limit)},
	}
	return t.c.do(ctx, http.MethodGet, t.path(), query, nil, nil, dest)
}

func (t *remoteTable) Insert(ctx context.Context, row any) error {
	header := http.Header{"Prefer": {"return=minimal"}}
	return t.c.do(ctx, http.MethodPost, t.path(), nil, header, row, nil)
}

func (t *remoteTable) UpdateSingle(ctx context.Context, column, value string, patch, dest any) error {
	query := url.Values{column: {"eq." + value}}
	header := http.Header{
		"Prefer": {"return=representation"},
		"Accept": {singleObjectAccept},
	}
	return t.c.do(ctx, http.MethodPatch, t.path(), query, header, patch, dest)
}
