package security

import (
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/opsguard/internal/domain"
)

func TestDefaultRulesLoad(t *testing.T) {
	repo, err := NewDefaultRuleRepository()
	require.NoError(t, err)

	rules := repo.Rules()
	require.NotEmpty(t, rules)
	assert.Equal(t, "root_deletion", rules[0].Name)
	assert.Equal(t, uint64(len(rules)), repo.Version())
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	repo := NewRuleRepository()
	rule := domain.SecurityRule{Name: "x", Pattern: `\bfoo\b`, Level: domain.RiskHigh, Description: "foo"}
	require.NoError(t, repo.Register(rule))

	err := repo.Register(rule)
	assert.ErrorIs(t, err, domain.ErrDuplicateRule)
	assert.Len(t, repo.Rules(), 1)
	assert.Equal(t, uint64(1), repo.Version())
}

func TestRegisterRejectsInvalidPattern(t *testing.T) {
	repo := NewRuleRepository()
	err := repo.Register(domain.SecurityRule{Name: "bad", Pattern: `(unclosed`, Level: domain.RiskLow})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, repo.Rules())
	assert.Zero(t, repo.Version())
}

func TestRegisterRejectsUnknownLevel(t *testing.T) {
	repo := NewRuleRepository()
	err := repo.Register(domain.SecurityRule{Name: "bad", Pattern: `x`, Level: "severe"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEvaluateIsCaseInsensitiveAndOrdered(t *testing.T) {
	repo, err := NewRuleRepositoryFrom([]domain.SecurityRule{
		{Name: "first", Pattern: `\bsystemctl\b`, Level: domain.RiskMedium},
		{Name: "second", Pattern: `\bstop\b`, Level: domain.RiskLow},
	})
	require.NoError(t, err)

	matches := repo.Evaluate("SYSTEMCTL STOP nginx")
	require.Len(t, matches, 2)
	assert.Equal(t, "first", matches[0].Rule.Name)
	assert.Equal(t, "second", matches[1].Rule.Name)
	assert.Equal(t, 0, matches[0].Start)
	assert.Equal(t, 9, matches[0].End)
}

func TestDefaultRulesAnchorProgramsAtCommandPosition(t *testing.T) {
	repo, err := NewDefaultRuleRepository()
	require.NoError(t, err)

	matched := func(command string) []string {
		var names []string
		for _, m := range repo.Evaluate(command) {
			names = append(names, m.Rule.Name)
		}
		return names
	}

	for _, command := range []string{"shutdown -h now", "sudo reboot", "ls; /sbin/poweroff", "systemctl reboot", "init 0", "sudo dd if=/tmp/a of=/tmp/b", "mkfs.ext4 /dev/sdb1"} {
		names := matched(command)
		assert.True(t, slices.Contains(names, "power_state") || slices.Contains(names, "disk_operations"), command)
	}
	for _, command := range []string{"cat /var/log/shutdown.log", "journalctl --no-pager -n 50 -u reboot-notifier", "ls -la /srv/dd", "grep halt app.log"} {
		names := matched(command)
		assert.NotContains(t, names, "power_state", command)
		assert.NotContains(t, names, "disk_operations", command)
	}
}

func TestEvaluateHonorsRuleWhitelist(t *testing.T) {
	repo, err := NewRuleRepositoryFrom([]domain.SecurityRule{
		{Name: "net", Pattern: `\bcurl\b`, Level: domain.RiskMedium, Whitelist: []string{"curl -I https://example.com"}},
	})
	require.NoError(t, err)

	assert.Empty(t, repo.Evaluate("  curl -I https://example.com  "))
	assert.Len(t, repo.Evaluate("curl https://example.com"), 1)
}

func TestEvaluateDuringRegistration(t *testing.T) {
	repo, err := NewDefaultRuleRepository()
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = repo.Register(domain.SecurityRule{
				Name:    "extra_" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
				Pattern: `\bnever-matches-\d+\b`,
				Level:   domain.RiskLow,
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			matches := repo.Evaluate("rm -rf /")
			assert.NotEmpty(t, matches)
		}
	}()
	wg.Wait()
}

func TestLoadRuleRepositoryFallsBackToDefaults(t *testing.T) {
	repo, err := LoadRuleRepository(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, repo.Rules())
}

func TestSaveAndLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	rules := []domain.SecurityRule{
		{Name: "custom", Pattern: `\bterraform\s+destroy\b`, Level: domain.RiskCritical, Description: "Destroying infrastructure"},
	}
	require.NoError(t, SaveRules(path, rules))

	repo, err := LoadRuleRepository(path)
	require.NoError(t, err)
	require.Len(t, repo.Rules(), 1)
	matches := repo.Evaluate("terraform destroy -auto-approve")
	require.Len(t, matches, 1)
	assert.Equal(t, domain.RiskCritical, matches[0].Rule.Level)
}
