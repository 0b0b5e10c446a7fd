package finalize

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmget/catalog"
	"vmget/internal/errors"
	"vmget/selection"
)

func resolved() selection.Resolved {
	return selection.Resolved{
		OS:      "alpine",
		GuestOS: "linux",
		Config: catalog.ReleaseConfig{
			Release: "3.18",
			Arch:    catalog.X86_64,
			Sources: []catalog.Source{
				{URL: "https://dl.example.org/alpine-virt-3.18.iso", Kind: catalog.KindISO},
			},
		},
		Directory: "/vms",
		Name:      "alpine-3.18-x86_64",
		CPUCores:  2,
		RAM:       4 * 1024 * 1024 * 1024,
	}
}

func TestRender(t *testing.T) {
	want := `#!/usr/bin/quickemu --vm
guest_os="linux"
iso="alpine-3.18-x86_64/alpine-virt-3.18.iso"
disk_img="alpine-3.18-x86_64/disk.qcow2"
cpu_cores="2"
ram="4G"
`
	assert.Equal(t, want, Render(resolved()))
}

func TestRender_SourceKinds(t *testing.T) {
	r := resolved()
	r.GuestOS = ""
	r.RAM = 1536 * 1024 * 1024
	r.Config.Arch = catalog.AArch64
	r.Config.Sources = []catalog.Source{
		{URL: "https://x/ubuntu.img", Kind: catalog.KindDisk},
		{URL: "https://x/virtio.iso"},
		{URL: "https://x/vars.fd"},
		{URL: "https://x/second.iso"},
	}

	want := `#!/usr/bin/quickemu --vm
guest_os="linux"
iso="alpine-3.18-x86_64/virtio.iso"
img="alpine-3.18-x86_64/vars.fd"
disk_img="alpine-3.18-x86_64/ubuntu.img"
arch="aarch64"
cpu_cores="2"
ram="1536M"
`
	assert.Equal(t, want, Render(r))
}

func TestQuickemuWriter_Write(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewQuickemuWriter(fs, nil)

	p, err := w.Write(context.Background(), resolved())
	require.NoError(t, err)
	assert.Equal(t, "/vms/alpine-3.18-x86_64.conf", p)
	assert.Equal(t, p, ConfigPath(resolved()))

	data, err := afero.ReadFile(fs, p)
	require.NoError(t, err)
	assert.Equal(t, Render(resolved()), string(data))
}

func TestQuickemuWriter_KeepsExistingConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/vms/alpine-3.18-x86_64.conf", []byte("mine"), 0644))

	_, err := NewQuickemuWriter(fs, nil).Write(context.Background(), resolved())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.NameCollisionError))

	data, err := afero.ReadFile(fs, "/vms/alpine-3.18-x86_64.conf")
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))
}

func TestQuickemuWriter_Errors(t *testing.T) {
	w := NewQuickemuWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), nil)
	_, err := w.Write(context.Background(), resolved())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.FinalizationError))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewQuickemuWriter(afero.NewMemMapFs(), nil).Write(ctx, resolved())
	assert.True(t, errors.IsType(err, errors.FinalizationError))
}
