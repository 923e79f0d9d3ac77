// Package pagination walks token-paginated collection endpoints.
//
// Every response carries a page of items and, when more remain, an opaque
// continuation token. The next request repeats the path with the token as a
// query parameter; a response without a token ends the collection:
//
//	GET /docs?limit=100                 -> {"items": [...], "nextPageToken": "T1"}
//	GET /docs?limit=100&pageToken=T1    -> {"items": [...]}
//
// Pages are fetched strictly one after another. Records are exposed as a
// lazy iter.Seq2, so a consumer that stops early issues no further requests:
//
//	fetcher, _ := pagination.NewFetcher(codaClient, pagination.DefaultConfig())
//	for rec, err := range fetcher.Records(ctx, "/docs") {
//		if err != nil {
//			return err
//		}
//		// use rec
//	}
//
// The fetcher never retries. A non-2xx answer ends the sequence with the
// client's *client.HTTPError; retry policy belongs to the HTTP client.
package pagination
