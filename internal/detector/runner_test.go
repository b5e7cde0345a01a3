package detector

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icatcheck/internal/catalog"
	"icatcheck/internal/catalog/catalogtest"
	"icatcheck/internal/common"
	"icatcheck/internal/output"
)

type stubDetector struct {
	name     string
	findings int
	err      error
	ran      bool
}

func (s *stubDetector) Name() string { return s.name }

func (s *stubDetector) Run(_ context.Context, cfg Config, sink output.Sink) (bool, error) {
	s.ran = true
	rep := newReporter(s.name, cfg, sink)
	for i := 0; i < s.findings; i++ {
		if err := rep.emit(output.Finding{CheckName: "stub"}); err != nil {
			return rep.found(), err
		}
	}
	return rep.found(), s.err
}

func TestRegistry_Order(t *testing.T) {
	names := DetectorNames(Registry(nil))
	assert.Equal(t, []string{
		NamePathConsistency, NameHardlinks, NameMinReplicas,
		NameRefIntegrity, NameTimestamps, NameNames, NameAll,
	}, names)
}

func TestRunner_Select(t *testing.T) {
	r := NewRunner(Registry(nil), output.NewCollector())
	require.NoError(t, r.Select(NameAll))
	assert.Len(t, r.Detectors, 6)

	require.NoError(t, r.Select(NameTimestamps))
	require.Len(t, r.Detectors, 1)
	assert.Equal(t, NameTimestamps, r.Detectors[0].Name())

	r = NewRunner(Registry(nil), output.NewCollector())
	err := r.Select("bogus")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUnknownDetector))
	assert.Contains(t, err.Error(), "path_consistency")
}

func TestRunner_Aggregates(t *testing.T) {
	clean := &stubDetector{name: "clean"}
	dirty := &stubDetector{name: "dirty", findings: 3}
	sink := output.NewCollector()

	res, err := NewRunner([]Detector{clean, dirty}, sink).Run(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.True(t, res.IssuesFound)
	assert.Equal(t, map[string]int{"clean": 0, "dirty": 3}, res.Findings)
	assert.Equal(t, ExitFindings, ExitStatus(res.IssuesFound, err))

	for _, f := range sink.Findings() {
		assert.Equal(t, "dirty", f.Check)
	}
}

func TestRunner_Clean(t *testing.T) {
	res, err := NewRunner([]Detector{&stubDetector{name: "a"}, &stubDetector{name: "b"}}, output.NewCollector()).
		Run(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, res.IssuesFound)
	assert.Equal(t, ExitClean, ExitStatus(res.IssuesFound, err))
}

func TestRunner_VerboseMessages(t *testing.T) {
	sink := output.NewCollector()
	cfg := DefaultConfig()
	cfg.Verbose = true

	_, err := NewRunner([]Detector{&stubDetector{name: "a", findings: 1}}, sink).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Starting test a", "Script finished. At least one issue has been detected."}, sink.Messages())
}

func TestRunner_AmbiguousResultContinues(t *testing.T) {
	first := &stubDetector{name: "first", findings: 1, err: common.AmbiguousResult.New("two names")}
	second := &stubDetector{name: "second", findings: 1}

	res, err := NewRunner([]Detector{first, second}, output.NewCollector()).Run(context.Background(), DefaultConfig())
	require.Error(t, err)
	assert.True(t, common.AmbiguousResult.Has(err))
	assert.True(t, second.ran)
	assert.True(t, res.IssuesFound)
	assert.Equal(t, ExitFatal, ExitStatus(res.IssuesFound, err))
}

func TestRunner_CatalogUnavailableAborts(t *testing.T) {
	first := &stubDetector{name: "first", err: common.CatalogUnavailable.New("connection reset")}
	second := &stubDetector{name: "second", findings: 1}
	sink := output.NewCollector()

	res, err := NewRunner([]Detector{first, second}, sink).Run(context.Background(), DefaultConfig())
	require.Error(t, err)
	assert.True(t, common.CatalogUnavailable.Has(err))
	assert.False(t, second.ran)
	assert.False(t, res.IssuesFound)
	assert.Empty(t, sink.Findings())
	assert.Equal(t, ExitFatal, ExitStatus(res.IssuesFound, err))
}

func TestRunner_UnreachableCatalog(t *testing.T) {
	fx := catalogtest.New(t)
	db := fx.Open()
	require.NoError(t, db.Close())
	sink := output.NewCollector()

	res, err := NewRunner(Registry(db), sink).Run(context.Background(), DefaultConfig())
	require.Error(t, err)
	assert.True(t, common.CatalogUnavailable.Has(err))
	assert.Empty(t, sink.Findings())
	assert.Equal(t, ExitFatal, ExitStatus(res.IssuesFound, err))
}

// seedMessyCatalog puts at least one violation in front of every detector.
func seedMessyCatalog(fx *catalogtest.Fixture) {
	resc := fx.Resource(catalogtest.Resource{Name: "demoResc", Vault: "/vault"})
	alice := fx.Collections("/tempZone/home/alice/dir")
	fx.DataObject(alice, resc, "ok.txt", "/vault/alice/dir/ok.txt")
	fx.DataObject(alice, resc, "moved.txt", "/vault/alice/elsewhere/moved.txt")
	fx.DataObject(alice, resc, "h1", "/vault/alice/dir/h")
	fx.DataObject(alice, resc, "h2", "/vault/alice/dir/h")
	fx.DataObject(alice, resc, "bad`name", "/vault/alice/dir/bad")
	fx.Insert(catalog.TableAccess, map[string]any{"object_id": 1, "user_id": fx.UserID})
	fx.Insert(catalog.TableRules, map[string]any{"rule_id": 9, "create_ts": "01700000009", "modify_ts": "01700000001"})
}

func TestRunner_FullRegistry(t *testing.T) {
	g := NewWithT(t)
	fx := catalogtest.New(t)
	seedMessyCatalog(fx)
	sink := output.NewCollector()
	cfg := DefaultConfig()
	cfg.MinReplicas = 2

	res, err := NewRunner(Registry(fx.Open()), sink).Run(context.Background(), cfg)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.IssuesFound).To(BeTrue())
	for _, name := range DetectorNames(Registry(nil)) {
		if name == NameAll {
			continue
		}
		g.Expect(res.Findings[name]).To(BeNumerically(">", 0), name)
	}
}

func TestRunner_CleanCatalog(t *testing.T) {
	fx := catalogtest.New(t)
	resc := fx.Resource(catalogtest.Resource{Name: "demoResc", Vault: "/vault"})
	coll := fx.Collections("/tempZone/home/alice")
	fx.DataObject(coll, resc, "a.txt", "/vault/alice/a.txt")

	res, err := NewRunner(Registry(fx.Open()), output.NewCollector()).Run(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, res.IssuesFound)
	assert.Equal(t, ExitClean, ExitStatus(res.IssuesFound, err))
}

func TestRunner_Idempotent(t *testing.T) {
	fx := catalogtest.New(t)
	seedMessyCatalog(fx)
	db := fx.Open()
	cfg := timestampConfig()
	cfg.MinReplicas = 2

	render := func() []byte {
		var buf bytes.Buffer
		_, err := NewRunner(Registry(db), output.NewCSV(&buf)).Run(context.Background(), cfg)
		require.NoError(t, err)
		return buf.Bytes()
	}
	first := render()
	second := render()
	assert.NotEmpty(t, first)
	assert.Equal(t, string(first), string(second))
}
