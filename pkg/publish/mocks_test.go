package publish

import (
	"context"
	"fmt"
	"testing"

	"github.com/holon-run/ota/pkg/api"
	"github.com/holon-run/ota/pkg/assets"
	"github.com/holon-run/ota/pkg/config"
	"github.com/holon-run/ota/pkg/export"
)

const testProjectID = "project-123"

// mockAPI records every call in order. Nil funcs fall back to a working
// in-memory default.
type mockAPI struct {
	EnsureBranchExistsFunc        func(ctx context.Context, params api.EnsureBranchParams) (api.BranchRef, error)
	BranchNameFromChannelNameFunc func(ctx context.Context, params api.ChannelLookupParams) (string, error)
	ListBranchesFunc              func(ctx context.Context, appID string, limit int) ([]api.Branch, error)
	EnsureChannelExistsFunc       func(ctx context.Context, params api.ChannelLookupParams, branchID string) (bool, error)
	PublishUpdateGroupsFunc       func(ctx context.Context, inputs []api.PublishUpdateGroupInput) ([]api.UpdateFragment, error)
	UpdatesByGroupFunc            func(ctx context.Context, group string) ([]api.UpdateFragment, error)

	calls         []string
	ensureParams  []api.EnsureBranchParams
	channelParams []api.ChannelLookupParams
	publishInputs [][]api.PublishUpdateGroupInput
}

func (m *mockAPI) EnsureBranchExists(ctx context.Context, params api.EnsureBranchParams) (api.BranchRef, error) {
	m.calls = append(m.calls, "EnsureBranchExists")
	m.ensureParams = append(m.ensureParams, params)
	if m.EnsureBranchExistsFunc != nil {
		return m.EnsureBranchExistsFunc(ctx, params)
	}
	return api.BranchRef{BranchID: "id-" + params.BranchName}, nil
}

func (m *mockAPI) BranchNameFromChannelName(ctx context.Context, params api.ChannelLookupParams) (string, error) {
	m.calls = append(m.calls, "BranchNameFromChannelName")
	m.channelParams = append(m.channelParams, params)
	if m.BranchNameFromChannelNameFunc != nil {
		return m.BranchNameFromChannelNameFunc(ctx, params)
	}
	return params.ChannelName, nil
}

func (m *mockAPI) ListBranches(ctx context.Context, appID string, limit int) ([]api.Branch, error) {
	m.calls = append(m.calls, "ListBranches")
	if m.ListBranchesFunc != nil {
		return m.ListBranchesFunc(ctx, appID, limit)
	}
	return nil, nil
}

func (m *mockAPI) EnsureChannelExists(ctx context.Context, params api.ChannelLookupParams, branchID string) (bool, error) {
	m.calls = append(m.calls, "EnsureChannelExists")
	if m.EnsureChannelExistsFunc != nil {
		return m.EnsureChannelExistsFunc(ctx, params, branchID)
	}
	return false, nil
}

func (m *mockAPI) PublishUpdateGroups(ctx context.Context, inputs []api.PublishUpdateGroupInput) ([]api.UpdateFragment, error) {
	m.calls = append(m.calls, "PublishUpdateGroups")
	m.publishInputs = append(m.publishInputs, inputs)
	if m.PublishUpdateGroupsFunc != nil {
		return m.PublishUpdateGroupsFunc(ctx, inputs)
	}
	return fragmentsFor(inputs), nil
}

func (m *mockAPI) UpdatesByGroup(ctx context.Context, group string) ([]api.UpdateFragment, error) {
	m.calls = append(m.calls, "UpdatesByGroup")
	if m.UpdatesByGroupFunc != nil {
		return m.UpdatesByGroupFunc(ctx, group)
	}
	return nil, nil
}

// fragmentsFor returns one update per platform, numbering groups in order.
func fragmentsFor(inputs []api.PublishUpdateGroupInput) []api.UpdateFragment {
	var out []api.UpdateFragment
	for i, in := range inputs {
		for _, platform := range []string{export.PlatformAndroid, export.PlatformIOS} {
			if _, ok := in.UpdateInfoGroup[platform]; !ok {
				continue
			}
			u := api.UpdateFragment{
				ID:             fmt.Sprintf("update-%d-%s", i+1, platform),
				Group:          fmt.Sprintf("group-%d", i+1),
				Message:        in.Message,
				RuntimeVersion: in.RuntimeVersion,
				Platform:       platform,
			}
			u.Branch.ID = in.BranchID
			out = append(out, u)
		}
	}
	return out
}

type mockSource struct {
	branch    string
	branchErr error
	hash      string
	dirty     bool
	message   string
}

func (s *mockSource) BranchName(context.Context) (string, error) {
	return s.branch, s.branchErr
}

func (s *mockSource) CommitHash(context.Context) (string, error) {
	if s.hash == "" {
		return "", fmt.Errorf("not a git repository")
	}
	return s.hash, nil
}

func (s *mockSource) IsDirty(context.Context) (bool, error) {
	return s.dirty, nil
}

func (s *mockSource) LastCommitMessage(context.Context) (string, error) {
	if s.message == "" {
		return "", fmt.Errorf("no commits")
	}
	return s.message, nil
}

type mockPrompter struct {
	branch        string
	message       string
	gotExisting   []string
	gotDefaultMsg string
	selectCalls   int
	messageCalls  int
}

func (p *mockPrompter) SelectBranch(_ context.Context, existing []string) (string, error) {
	p.selectCalls++
	p.gotExisting = existing
	return p.branch, nil
}

func (p *mockPrompter) InputMessage(_ context.Context, defaultMessage string) (string, error) {
	p.messageCalls++
	p.gotDefaultMsg = defaultMessage
	if p.message == "" {
		return defaultMessage, nil
	}
	return p.message, nil
}

type mockExporter struct {
	result *export.Result
	err    error
	opts   []export.Options
}

func (e *mockExporter) Export(_ context.Context, opts export.Options) (*export.Result, error) {
	e.opts = append(e.opts, opts)
	return e.result, e.err
}

type mockUploader struct {
	files []export.Asset
	err   error
}

func (u *mockUploader) Upload(_ context.Context, files []export.Asset) (*assets.Result, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.files = append(u.files, files...)
	return &assets.Result{Uploaded: len(files)}, nil
}

func testAsset(name, ext string) export.Asset {
	return export.Asset{
		Path:        "/work/app/dist/" + name,
		Ext:         ext,
		ContentType: export.ContentType(ext),
		SHA256:      "sha-" + name,
		StorageKey:  "sha-" + name,
		BundleKey:   "md5-" + name,
	}
}

// testExport has an android and an ios bundle sharing one image.
func testExport() *export.Result {
	shared := testAsset("logo.png", "png")
	return &export.Result{
		Dir: "/work/app/dist",
		Platforms: map[string]*export.PlatformExport{
			export.PlatformAndroid: {
				Platform:    export.PlatformAndroid,
				LaunchAsset: testAsset("android.hbc", "hbc"),
				Assets:      []export.Asset{shared},
			},
			export.PlatformIOS: {
				Platform:    export.PlatformIOS,
				LaunchAsset: testAsset("ios.hbc", "hbc"),
				Assets:      []export.Asset{shared},
			},
		},
	}
}

func testProject() *config.Project {
	return &config.Project{
		Dir:        "/work/app",
		ConfigPath: "/work/app/app.json",
		ProjectID:  testProjectID,
		Exp: config.Exp{
			Name:           "app",
			Slug:           "app",
			RuntimeVersion: &config.RuntimeVersion{Value: "1.0.0"},
		},
	}
}

type testDeps struct {
	api      *mockAPI
	exporter *mockExporter
	uploader *mockUploader
	loads    []string
}

func newTestRunner(t *testing.T, project *config.Project) (*Runner, *testDeps) {
	t.Helper()
	td := &testDeps{
		api:      &mockAPI{},
		exporter: &mockExporter{result: testExport()},
		uploader: &mockUploader{},
	}
	runner := NewRunner(Dependencies{
		API: td.api,
		LoadProject: func(dir string) (*config.Project, error) {
			td.loads = append(td.loads, dir)
			return project, nil
		},
		Exporter: td.exporter,
		Uploader: td.uploader,
	})
	return runner, td
}
