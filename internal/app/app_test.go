package app

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/pifaas/internal/config"
	"github.com/aatumaykin/pifaas/internal/crontab"
	"github.com/aatumaykin/pifaas/internal/functions"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Functions.Dir = filepath.Join(root, "functions")
	cfg.Functions.Watch = false
	cfg.Logs.Dir = filepath.Join(root, "logs")
	cfg.Schedule.MirrorFile = filepath.Join(root, "schedules.json")
	cfg.Runtime.PIDFile = filepath.Join(root, ".pifaas.pid")
	cfg.Runtime.SystemdNotify = false
	return &cfg
}

func writeFunction(t *testing.T, cfg *config.Config, name, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(cfg.Functions.Dir, 0755))
	path := filepath.Join(cfg.Functions.Dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

func TestBootstrap(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, nil, WithTable(crontab.NewMemoryTable("")))
	require.NoError(t, err)

	require.NoError(t, a.Bootstrap())

	assert.DirExists(t, cfg.Functions.Dir)
	assert.DirExists(t, cfg.Logs.Dir)
	data, err := os.ReadFile(cfg.Schedule.MirrorFile)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestSetSchedule_ScriptMode(t *testing.T) {
	cfg := testConfig(t)
	script := writeFunction(t, cfg, "ping", "echo pong")
	table := crontab.NewMemoryTable("0 3 * * * backup\n")

	a, err := New(cfg, nil, WithTable(table))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, a.SetSchedule(ctx, "ping", "*/5 * * * *"))
	assert.Equal(t, "0 3 * * * backup\n*/5 * * * * "+script+" # # FaaS PiZero ping\n", table.Content())

	all, err := a.Mirror().All()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ping": "*/5 * * * *"}, all)

	require.NoError(t, a.RemoveSchedule(ctx, "ping"))
	assert.Equal(t, "0 3 * * * backup\n", table.Content())
}

func TestSetSchedule_UnknownFunction(t *testing.T) {
	cfg := testConfig(t)
	table := crontab.NewMemoryTable("")
	a, err := New(cfg, nil, WithTable(table))
	require.NoError(t, err)

	err = a.SetSchedule(context.Background(), "ghost", "* * * * *")
	assert.ErrorIs(t, err, functions.ErrNotFound)
	assert.Equal(t, 0, table.Writes())
}

func TestSetSchedule_WrapperMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.CommandMode = config.CommandModeWrapper
	writeFunction(t, cfg, "ping", "echo pong")
	table := crontab.NewMemoryTable("")

	a, err := New(cfg, nil,
		WithTable(table),
		WithExecutable("/usr/local/bin/pifaas"),
		WithConfigPath("/etc/pifaas/config.toml"),
		WithWorkDir("/srv/pifaas"))
	require.NoError(t, err)

	require.NoError(t, a.SetSchedule(context.Background(), "ping", "0 * * * *"))
	assert.Equal(t,
		"0 * * * * cd /srv/pifaas && /usr/local/bin/pifaas --config /etc/pifaas/config.toml invoke ping # # FaaS PiZero ping\n",
		table.Content())
}

func TestWrapperMode_InvokeFromCronDirectory(t *testing.T) {
	t.Chdir(t.TempDir())
	serverDir, err := os.Getwd()
	require.NoError(t, err)

	cfg, err := config.LoadOptional("config.toml")
	require.NoError(t, err)
	cfg.Functions.Watch = false
	cfg.Schedule.CommandMode = config.CommandModeWrapper
	writeFunction(t, cfg, "ping", "echo pong")
	table := crontab.NewMemoryTable("")

	server, err := New(cfg, nil, WithTable(table), WithExecutable("/usr/local/bin/pifaas"))
	require.NoError(t, err)
	require.NoError(t, server.Bootstrap())
	require.NoError(t, server.SetSchedule(context.Background(), "ping", "* * * * *"))

	entries := crontab.ParseEntries(table.Content(), cfg.Schedule.Tag)
	require.Len(t, entries, 1)
	assert.Equal(t, "cd "+shellQuote(serverDir)+" && /usr/local/bin/pifaas invoke ping", entries[0].Command)

	// cron стартует задание из $HOME
	t.Chdir(t.TempDir())

	// уже загруженный конфиг не зависит от текущего каталога
	sameCfg, err := New(cfg, nil, WithTable(crontab.NewMemoryTable("")))
	require.NoError(t, err)
	_, err = sameCfg.Executor().Lookup("ping")
	require.NoError(t, err)

	// строка cron сначала возвращается в каталог сервера
	dir, _, ok := strings.Cut(strings.TrimPrefix(entries[0].Command, "cd "), " && ")
	require.True(t, ok)
	t.Chdir(strings.Trim(dir, "'"))

	cronCfg, err := config.LoadOptional("config.toml")
	require.NoError(t, err)
	cronCfg.Functions.Watch = false
	invoker, err := New(cronCfg, nil, WithTable(crontab.NewMemoryTable("")))
	require.NoError(t, err)

	result, err := invoker.Executor().Execute("ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong\n", string(result.Output))

	logged, err := server.RunLog().Read("ping")
	require.NoError(t, err)
	assert.Contains(t, string(logged), "pong")
}

func TestNew_InvalidSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Backend = "etcd"
	_, err := New(cfg, nil)
	assert.ErrorContains(t, err, "unsupported schedule backend")

	cfg = testConfig(t)
	cfg.Schedule.CommandMode = "docker"
	_, err = New(cfg, nil, WithTable(crontab.NewMemoryTable("")))
	assert.ErrorContains(t, err, "unsupported command mode")
}

func TestNew_FileBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Backend = config.BackendFile
	cfg.Schedule.TableFile = "/var/spool/pifaas.cron"
	writeFunction(t, cfg, "ping", "echo pong")
	fsys := afero.NewMemMapFs()

	a, err := New(cfg, nil, WithFs(fsys))
	require.NoError(t, err)

	require.NoError(t, a.SetSchedule(context.Background(), "ping", "*/5 * * * *"))

	data, err := afero.ReadFile(fsys, "/var/spool/pifaas.cron")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# # FaaS PiZero ping")
}

func TestNew_FileBackendSystemTable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Backend = config.BackendFile
	cfg.Schedule.TableFile = "/etc/cron.d/pifaas"
	cfg.Schedule.CrontabUser = "pi"
	script := writeFunction(t, cfg, "ping", "echo pong")
	fsys := afero.NewMemMapFs()

	a, err := New(cfg, nil, WithFs(fsys))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, a.SetSchedule(ctx, "ping", "*/5 * * * *"))

	data, err := afero.ReadFile(fsys, "/etc/cron.d/pifaas")
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * * pi "+script+" # # FaaS PiZero ping\n", string(data))

	drift, err := a.Drift(ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestSchedules(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, nil, WithTable(crontab.NewMemoryTable("")))
	require.NoError(t, err)
	require.NoError(t, a.Mirror().Upsert("b", "0 3 * * *"))
	require.NoError(t, a.Mirror().Upsert("a", "*/5 * * * *"))
	require.NoError(t, a.Mirror().Upsert("c", "0 0 * * 7"))

	now := time.Date(2026, 1, 1, 10, 2, 0, 0, time.UTC)
	list, err := a.Schedules(now)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, "a", list[0].Function)
	require.NotNil(t, list[0].NextRun)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC), *list[0].NextRun)

	assert.Equal(t, "b", list[1].Function)
	require.NotNil(t, list[1].NextRun)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), *list[1].NextRun)

	assert.Equal(t, "c", list[2].Function)
	assert.Nil(t, list[2].NextRun)
	assert.NotEmpty(t, list[2].ParseError)
}

func TestDrift(t *testing.T) {
	cfg := testConfig(t)
	table := crontab.NewMemoryTable(
		"0 3 * * * backup\n" +
			"*/5 * * * * /f/same # # FaaS PiZero same\n" +
			"0 * * * * /f/changed # # FaaS PiZero changed\n" +
			"0 1 * * * /f/orphan # # FaaS PiZero orphan\n")
	a, err := New(cfg, nil, WithTable(table))
	require.NoError(t, err)

	require.NoError(t, a.Mirror().Upsert("same", "*/5 * * * *"))
	require.NoError(t, a.Mirror().Upsert("changed", "*/10 * * * *"))
	require.NoError(t, a.Mirror().Upsert("lost", "0 2 * * *"))

	drift, err := a.Drift(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Drift{
		{Function: "changed", Kind: DriftExpression, Mirror: "*/10 * * * *", Table: "0 * * * *"},
		{Function: "lost", Kind: DriftMissingInTable, Mirror: "0 2 * * *"},
		{Function: "orphan", Kind: DriftMissingInMirror, Table: "0 1 * * *"},
	}, drift)

	// только чтение
	assert.Equal(t, 0, table.Writes())
}

func TestDrift_LongExpression(t *testing.T) {
	cfg := testConfig(t)
	table := crontab.NewMemoryTable("0 0 1 1 * 2030 /f/once # # FaaS PiZero once\n")
	a, err := New(cfg, nil, WithTable(table))
	require.NoError(t, err)
	require.NoError(t, a.Mirror().Upsert("once", "0 0 1 1 * 2030"))

	drift, err := a.Drift(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Functions.Watch = true
	writeFunction(t, cfg, "echo", "cat")

	a, err := New(cfg, nil, WithTable(crontab.NewMemoryTable("")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Server().Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	assert.FileExists(t, cfg.Runtime.PIDFile)

	resp, err := http.Post("http://"+a.Server().Addr()+"/echo", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(body))

	resp, err = http.Get("http://" + a.Server().Addr() + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `pifaas_invocations_total{function="echo",status="success"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.NoFileExists(t, cfg.Runtime.PIDFile)
}

func TestStart_RefusesSecondInstance(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Runtime.PIDFile, []byte(strconv.Itoa(os.Getppid())), 0600))

	a, err := New(cfg, nil, WithTable(crontab.NewMemoryTable("")))
	require.NoError(t, err)

	err = a.Start(context.Background())
	assert.ErrorContains(t, err, "already running")
	assert.NoError(t, a.Shutdown(context.Background()))
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "/usr/local/bin/pifaas", shellQuote("/usr/local/bin/pifaas"))
	assert.Equal(t, "'/opt/my apps/pifaas'", shellQuote("/opt/my apps/pifaas"))
	assert.Equal(t, `'/opt/it'\''s/pifaas'`, shellQuote("/opt/it's/pifaas"))
	assert.Equal(t, "''", shellQuote(""))
}
