package routing

import "testing"

func TestParseAllowlistYAML_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
	}{
		{name: "not yaml", in: "\xff"},
		{name: "bad version", in: "version: 2\nentrypoints: {}"},
		{name: "no entrypoints", in: "version: 1"},
		{name: "unknown route class", in: "version: 1\nentrypoints:\n  server:\n    routes:\n      - path: /health\n        methods: [GET]\n        route_class: webhook"},
		{name: "relative path", in: "version: 1\nentrypoints:\n  server:\n    routes:\n      - path: health\n        methods: [GET]\n        route_class: ops"},
		{name: "no methods", in: "version: 1\nentrypoints:\n  server:\n    routes:\n      - path: /health\n        route_class: ops"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseAllowlistYAML([]byte(tc.in)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseAllowlistYAML_Valid(t *testing.T) {
	t.Parallel()

	in := "version: 1\nentrypoints:\n  server:\n    routes:\n      - path: /kekhai/api/declarations\n        methods: [GET, POST]\n        route_class: internal_api"
	a, err := ParseAllowlistYAML([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	routes := a.Entrypoints["server"].Routes
	if len(routes) != 1 || routes[0].Path != "/kekhai/api/declarations" {
		t.Fatalf("routes=%+v", routes)
	}
}
