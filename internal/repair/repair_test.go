package repair

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icatcheck/internal/catalog/catalogtest"
)

const provider = "provider.example.org"

func seed(t *testing.T) *catalogtest.Fixture {
	fx := catalogtest.New(t)
	onProvider := fx.Resource(catalogtest.Resource{Name: "provResc", Host: provider, Vault: "/pvault"})
	onConsumer := fx.Resource(catalogtest.Resource{Name: "consResc", Host: "consumer.example.org", Vault: "/cvault"})
	coll := fx.Collections("/tempZone/home/alice/dir")

	// misplaced on both hosts: only the consumer replica is repaired
	moved := fx.DataObject(coll, onProvider, "moved.txt", "/pvault/alice/wrong/moved.txt")
	fx.Replica(moved, coll, onConsumer, "moved.txt", "/cvault/alice/wrong/moved.txt")

	// misplaced on the consumer and hard linked
	fx.DataObject(coll, onConsumer, "link1", "/cvault/alice/other/shared")
	fx.DataObject(coll, onConsumer, "link2", "/cvault/alice/other/shared")

	// fine
	fx.DataObject(coll, onConsumer, "ok.txt", "/cvault/alice/dir/ok.txt")

	// quote in the name
	fx.DataObject(coll, onConsumer, "it's.txt", "/cvault/alice/x/it's.txt")
	return fx
}

func TestGenerate(t *testing.T) {
	fx := seed(t)
	var buf bytes.Buffer

	sum, err := Generate(context.Background(), fx.Open(), Options{Provider: provider}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Repairs)
	assert.Equal(t, 2, sum.Skipped)

	script := buf.String()
	assert.True(t, strings.HasPrefix(script, "#!/bin/sh\n"))
	assert.Contains(t, script, "# /tempZone/home/alice/dir/moved.txt on consResc\nitrim -M -S 'consResc' -N 1 '/tempZone/home/alice/dir/moved.txt'\n")
	assert.Contains(t, script, "irepl -M -R 'irodsRescRepl' '/tempZone/home/alice/dir/moved.txt'\n")
	assert.Contains(t, script, "ils -L '/tempZone/home/alice/dir/moved.txt'\n")
	assert.NotContains(t, script, "provResc")
	assert.NotContains(t, script, "ok.txt")
	assert.Contains(t, script, "# Not repairing data object /tempZone/home/alice/dir/link1, because it has a hard link.\n")
	assert.Contains(t, script, "# Not repairing data object /tempZone/home/alice/dir/link2, because it has a hard link.\n")
	assert.Contains(t, script, `'/tempZone/home/alice/dir/it'"'"'s.txt'`)
}

func TestGenerate_ReplResource(t *testing.T) {
	fx := seed(t)
	var buf bytes.Buffer

	_, err := Generate(context.Background(), fx.Open(), Options{Provider: provider, ReplResource: "archiveRepl"}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "irepl -M -R 'archiveRepl' ")
	assert.NotContains(t, buf.String(), DefaultReplResource)
}

func TestGenerate_NothingToDo(t *testing.T) {
	fx := catalogtest.New(t)
	var buf bytes.Buffer

	sum, err := Generate(context.Background(), fx.Open(), Options{Provider: provider}, &buf)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"), "header only")
}

func TestWriteScript(t *testing.T) {
	fx := seed(t)
	fs := memfs.New()

	sum, err := WriteScript(context.Background(), fs, "out/fix.sh", fx.Open(), Options{Provider: provider})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Repairs)

	data, err := util.ReadFile(fs, "out/fix.sh")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "#!/bin/sh\n"))

	entries, err := fs.ReadDir("out")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file must be renamed away")
	assert.Equal(t, "fix.sh", entries[0].Name())
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'$HOME `+"`x`"+`'`, shellQuote("$HOME `x`"))
	assert.Equal(t, `'a'"'"'b'`, shellQuote("a'b"))
}

func TestGenerate_NewlineInName(t *testing.T) {
	fx := catalogtest.New(t)
	resc := fx.Resource(catalogtest.Resource{Name: "consResc", Host: "consumer.example.org", Vault: "/cvault"})
	coll := fx.Collections("/tempZone/home/alice/dir")
	fx.DataObject(coll, resc, "x\nrm -rf ~", "/cvault/alice/wrong/x")
	var buf bytes.Buffer

	sum, err := Generate(context.Background(), fx.Open(), Options{Provider: provider}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Repairs)
	assert.Contains(t, buf.String(), "# /tempZone/home/alice/dir/x?rm -rf ~ on consResc\n")
	assert.NotContains(t, buf.String(), "\nrm -rf ~ on")
}
