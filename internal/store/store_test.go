package store

import "testing"

func TestPageNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Page
		want Page
	}{
		{"zero value", Page{}, Page{Page: 1, Limit: DefaultLimit, Sort: "created_at", Desc: true}},
		{"clamps limit", Page{Page: 2, Limit: 500, Sort: "amount"}, Page{Page: 2, Limit: MaxLimit, Sort: "amount"}},
		{"unknown sort", Page{Page: 3, Limit: 5, Sort: "password"}, Page{Page: 3, Limit: 5, Sort: "created_at", Desc: true}},
		{"keeps asc", Page{Page: 1, Limit: 20, Sort: "delivery_time", Desc: false}, Page{Page: 1, Limit: 20, Sort: "delivery_time"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Normalize(BidSorts...); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestPageOffsetAndTotalPages(t *testing.T) {
	p := Page{Page: 3, Limit: 10}
	if p.Offset() != 20 {
		t.Fatalf("offset = %d", p.Offset())
	}
	if got := p.TotalPages(21); got != 3 {
		t.Fatalf("total pages = %d", got)
	}
	if got := p.TotalPages(0); got != 0 {
		t.Fatalf("total pages for empty = %d", got)
	}
}
