package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alpineJSON = `[
  {
    "name": "alpine",
    "pretty_name": "Alpine Linux",
    "homepage": "https://alpinelinux.org/",
    "releases": [
      {"release": "3.19", "arch": "x86_64", "sources": [{"url": "https://dl.example.org/alpine-virt-3.19-x86_64.iso", "kind": "iso"}]},
      {"release": "3.19", "arch": "aarch64", "sources": [{"url": "https://dl.example.org/alpine-virt-3.19-aarch64.iso", "kind": "iso"}]},
      {"release": "3.18", "arch": "x86_64:legacy", "sources": [{"url": "https://dl.example.org/alpine-virt-3.18-x86_64.iso"}]}
    ]
  }
]`

func TestParseArch(t *testing.T) {
	tests := []struct {
		in      string
		want    Arch
		display string
	}{
		{"x86_64", X86_64, "x86_64"},
		{"amd64", X86_64, "x86_64"},
		{"arm64", AArch64, "aarch64"},
		{"riscv64", Riscv64, "riscv64"},
		{"x86_64:legacy", Arch{Family: FamilyX86_64, Machine: "legacy"}, "Legacy x86_64"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseArch(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.display, got.String())
		})
	}

	_, err := ParseArch("sparc")
	assert.Error(t, err)
}

func TestArchTextRoundTrip(t *testing.T) {
	legacy := Arch{Family: FamilyX86_64, Machine: "legacy"}
	data, err := json.Marshal(map[string]Arch{"a": legacy, "b": AArch64})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x86_64:legacy","b":"aarch64"}`, string(data))
}

func TestHostArch(t *testing.T) {
	assert.False(t, HostArch().IsZero())
	assert.Equal(t, MachineStandard, HostArch().Machine)
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "disk.qcow2", Source{URL: "https://x/y.img", FileName: "disk.qcow2"}.Name())
	assert.Equal(t, "alpine.iso", Source{URL: "https://x/pub/alpine.iso?mirror=1"}.Name())
	assert.Equal(t, "download", Source{URL: "https://x/"}.Name())
}

func TestHTTPProvider(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(alpineJSON))
	}))
	defer srv.Close()

	list, err := NewHTTPProvider(srv.URL, "vmget-test", nil, nil).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.Equal(t, "vmget-test", gotUA)
	assert.Equal(t, "Alpine Linux", list[0].PrettyName)
	require.Len(t, list[0].Releases, 3)
	assert.Equal(t, AArch64, list[0].Releases[1].Arch)
	assert.Equal(t, KindISO, list[0].Releases[0].Sources[0].Kind)
}

func TestHTTPProvider_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPProvider(srv.URL, "", nil, nil).Fetch(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name": "", "releases": []}]`))
	}))
	defer bad.Close()

	_, err = NewHTTPProvider(bad.URL, "", nil, nil).Fetch(context.Background())
	assert.Error(t, err)
}

func TestFileProvider(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/catalog.json", []byte(alpineJSON), 0644))

	yamlCatalog := `
- name: debian
  pretty_name: Debian
  releases:
    - release: "12"
      edition: netinst
      arch: x86_64
      sources:
        - url: https://deb.example.org/debian-12-netinst.iso
    - release: "12"
      edition: standard
      arch: arm64
      sources:
        - url: https://deb.example.org/debian-12-standard.iso
`
	require.NoError(t, afero.WriteFile(fs, "/catalog.yaml", []byte(yamlCatalog), 0644))

	list, err := NewFileProvider(fs, "/catalog.json").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alpine", list[0].Name)

	list, err = NewFileProvider(fs, "/catalog.yaml").Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "netinst", list[0].Releases[0].Edition)
	assert.Equal(t, AArch64, list[0].Releases[1].Arch)

	_, err = NewFileProvider(fs, "/missing.json").Fetch(context.Background())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.Error(t, Validate([]OS{{Name: "a"}, {Name: "a"}}))
	assert.Error(t, Validate([]OS{{Name: "a", Releases: []ReleaseConfig{{Arch: X86_64}}}}))
	assert.Error(t, Validate([]OS{{Name: "a", Releases: []ReleaseConfig{{Release: "1"}}}}))
}

func TestFind(t *testing.T) {
	list := Static{{Name: "alpine"}, {Name: "debian"}}
	os, ok := Find(list, "debian")
	assert.True(t, ok)
	assert.Equal(t, "debian", os.Name)

	_, ok = Find(list, "plan9")
	assert.False(t, ok)
}
