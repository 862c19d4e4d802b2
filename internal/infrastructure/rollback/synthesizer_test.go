package rollback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/opsguard/internal/domain"
)

func TestSynthesizeServiceInverses(t *testing.T) {
	s := NewSynthesizer()
	tests := []struct {
		action string
		want   string
	}{
		{"start", "systemctl stop nginx"},
		{"stop", "systemctl start nginx"},
		{"enable", "systemctl disable nginx"},
		{"disable", "systemctl enable nginx"},
		{"restart", "systemctl stop nginx"},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			got, err := s.Synthesize([]domain.ToolCall{
				domain.NewToolCall(domain.ToolManageService, "action", tt.action, "service", "nginx"),
			})
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, got)
		})
	}
}

func TestSynthesizeReversesCallOrder(t *testing.T) {
	s := NewSynthesizer()
	calls := []domain.ToolCall{
		domain.NewToolCall(domain.ToolFileOperations, "operation", "copy", "path", "/srv/app.conf", "target", "/srv/app.conf.bak"),
		domain.NewToolCall(domain.ToolGetSystemInfo),
		domain.NewToolCall(domain.ToolManageService, "action", "start", "service_name", "app"),
	}

	got, err := s.Synthesize(calls)

	require.NoError(t, err)
	assert.Equal(t, []string{"systemctl stop app", "rm -f /srv/app.conf.bak"}, got)
}

func TestSynthesizeFileInverses(t *testing.T) {
	s := NewSynthesizer()

	got, err := s.Synthesize([]domain.ToolCall{
		domain.NewToolCall(domain.ToolFileOperations, "operation", "create", "path", "/tmp/my file"),
		domain.NewToolCall(domain.ToolFileOperations, "operation", "move", "path", "/srv/a", "target", "/srv/b"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"mv /srv/b /srv/a", "rm -f '/tmp/my file'"}, got)
}

func TestSynthesizeAnchorsRelativePathsToWorkingDir(t *testing.T) {
	s := NewSynthesizer()

	got, err := s.Synthesize([]domain.ToolCall{
		domain.NewToolCall(domain.ToolFileOperations, "operation", "create", "path", "cache/", "working_dir", "/srv/app"),
		domain.NewToolCall(domain.ToolFileOperations, "operation", "move", "path", "a.conf", "target", "/tmp/a.conf", "working_dir", "/srv/app"),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"mv /tmp/a.conf /srv/app/a.conf", "rmdir /srv/app/cache/"}, got)
}

func TestSynthesizeReadOnlyOnly(t *testing.T) {
	got, err := NewSynthesizer().Synthesize([]domain.ToolCall{
		domain.NewToolCall(domain.ToolCheckLogs, "service", "nginx"),
		domain.NewToolCall(domain.ToolManageService, "action", "status", "service", "nginx"),
	})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestSynthesizeNoInverseKnown(t *testing.T) {
	s := NewSynthesizer()
	for _, call := range []domain.ToolCall{
		domain.NewToolCall(domain.ToolFileOperations, "operation", "delete", "path", "/srv/data"),
		domain.NewToolCall(domain.ToolExecuteCommand, "command", "apt-get upgrade -y"),
		domain.NewToolCall(domain.ToolManageService, "action", "reload", "service", "nginx"),
		domain.NewToolCall("deploy_release", "version", "2"),
	} {
		_, err := s.Synthesize([]domain.ToolCall{call})
		assert.ErrorIs(t, err, domain.ErrNoInverseKnown, call.Name)
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	s := NewSynthesizer()
	calls := []domain.ToolCall{
		domain.NewToolCall(domain.ToolManageService, "action", "enable", "service", "nginx"),
		domain.NewToolCall(domain.ToolManageService, "action", "start", "service", "nginx"),
	}
	first, err := s.Synthesize(calls)
	require.NoError(t, err)
	second, err := s.Synthesize(calls)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
