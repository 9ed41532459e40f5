package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_server/core/domain"
)

func resetClassifyFlags() {
	classifyURL = ""
	classifyReferrer = ""
	classifySiteHost = ""
	classifyPriorReferrer = ""
	classifyCampaign = domain.CampaignNone
	classifyModel = string(domain.ModelHybrid)
	classifyHostMatch = string(domain.HostMatchSubstring)
	classifyRules = ""
	classifyTrace = false
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetClassifyFlags()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	original := version
	SetVersion("1.2.3")
	defer func() { version = original }()

	out, err := execute(t, "version")
	assert.NoError(t, err)
	assert.Contains(t, out, "tracker version 1.2.3")
}

func TestClassifyCmd_ClickID(t *testing.T) {
	out, err := execute(t, "classify",
		"--url", "https://shop.example.com/?gclid=abc",
		"--referrer", "https://www.bing.com/")
	require.NoError(t, err)

	var res domain.Resolution
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "google", res.Tuple.Source)
	assert.Equal(t, "cpc", res.Tuple.Medium)
	assert.Empty(t, res.Trace)
}

func TestClassifyCmd_CampaignDefaultAndTrace(t *testing.T) {
	out, err := execute(t, "classify",
		"--referrer", "https://news.example.org/a",
		"--campaign-default", "",
		"--trace")
	require.NoError(t, err)

	var res domain.Resolution
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "news.example.org", res.Tuple.Source)
	assert.Equal(t, "referral", res.Tuple.Medium)
	assert.Equal(t, "", res.Tuple.Campaign)
	assert.NotEmpty(t, res.Trace)
}

func TestClassifyCmd_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	rules := `
search_engines:
  - names: [kagi]
    match_domains: [kagi]
    medium: organic
`
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o600))

	out, err := execute(t, "classify", "--referrer", "https://kagi.com/search?q=x", "--rules", path)
	require.NoError(t, err)

	var res domain.Resolution
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "kagi", res.Tuple.Source)
	assert.Equal(t, "organic", res.Tuple.Medium)
}

func TestClassifyCmd_HostMatch(t *testing.T) {
	out, err := execute(t, "classify", "--referrer", "https://www.microsoft.com/")
	require.NoError(t, err)
	var res domain.Resolution
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "twitter", res.Tuple.Source)

	out, err = execute(t, "classify", "--referrer", "https://www.microsoft.com/", "--host-match", "label")
	require.NoError(t, err)
	res = domain.Resolution{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "www.microsoft.com", res.Tuple.Source)
	assert.Equal(t, "referral", res.Tuple.Medium)

	_, err = execute(t, "classify", "--referrer", "https://x.com/", "--host-match", "regex")
	assert.Error(t, err)
}

func TestClassifyCmd_Errors(t *testing.T) {
	_, err := execute(t, "classify")
	assert.Error(t, err)

	_, err = execute(t, "classify", "--url", "https://a.example/", "--model", "last-touch")
	assert.Error(t, err)
}
