package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kakeibo/internal/backend"
	"kakeibo/internal/ledger"
)

func setupEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"KAKEIBO_CONFIG", "KAKEIBO_BACKEND", "KAKEIBO_CATEGORY_BACKEND",
		"KAKEIBO_USER_ID", "KAKEIBO_AMQP_URL", "KAKEIBO_GOOGLE_SPREADSHEET_ID",
		"KAKEIBO_GOOGLE_CREDENTIALS_FILE", "KAKEIBO_SEED_DIR",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("KAKEIBO_SQLITE_DB_PATH", filepath.Join(t.TempDir(), "kakeibo.db"))
	t.Setenv("KAKEIBO_LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("kakeibo %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// firstID returns the id column of the first exported row.
func firstID(t *testing.T, user string) string {
	t.Helper()
	out := mustRun(t, "--user", user, "export", "--no-bom")
	lines := strings.Split(out, "\r\n")
	if len(lines) < 2 {
		t.Fatalf("no rows exported:\n%s", out)
	}
	fields := strings.Split(lines[1], ",")
	return strings.Trim(fields[len(fields)-1], `"`)
}

func TestMutationsRequireUser(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "add", "-c", "食費", "-a", "500")
	if !errors.Is(err, ledger.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestAddListAndReports(t *testing.T) {
	setupEnv(t)

	mustRun(t, "--user", "alice", "add", "--date", "2024-01-05", "-c", "給与", "-a", "300,000", "-t", "income")
	out := mustRun(t, "--user", "alice", "add", "--date", "2024-01-10", "-c", "食費", "-s", "外食", "-a", "¥1,200", "-m", "ラーメン")
	assertContains(t, out, "Added 2024-01-10 支出 食費/外食 ￥1,200")

	assertContains(t, mustRun(t, "--user", "alice", "list"), "ラーメン", "￥300,000", "外食")
	assertContains(t, mustRun(t, "--user", "alice", "summary", "--month", "2024-01"),
		"収入 ￥300,000", "支出 ￥1,200", "収支 ￥298,800", "(2件)", "総資産 ￥298,800")
	assertContains(t, mustRun(t, "--user", "alice", "history"), "2024-01-05", "￥300,000", "￥298,800")
	assertContains(t, mustRun(t, "--user", "alice", "breakdown"), "食費", "100.0%")
	assertContains(t, mustRun(t, "--user", "alice", "breakdown", "--sub", "-t", "income"), "(unclassified)")

	if out := mustRun(t, "--user", "bob", "list"); !strings.Contains(out, "No entries.") {
		t.Fatalf("users must not see each other's entries:\n%s", out)
	}
}

func TestInvalidEntryIsRejected(t *testing.T) {
	setupEnv(t)
	tests := [][]string{
		{"add", "-c", "食費", "-a", "0"},
		{"add", "-c", "食費", "-a", "100", "--date", "2024/01/05"},
		{"add", "-c", "食費", "-a", "100", "-t", "transfer"},
	}
	for _, args := range tests {
		if _, err := run(t, append([]string{"--user", "alice"}, args...)...); err == nil {
			t.Errorf("kakeibo %v: expected error", args)
		}
	}
	if out := mustRun(t, "--user", "alice", "list"); !strings.Contains(out, "No entries.") {
		t.Fatalf("rejected entries were stored:\n%s", out)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	setupEnv(t)
	mustRun(t, "--user", "alice", "add", "--date", "2024-02-01", "-c", "交通費", "-a", "220")
	id := firstID(t, "alice")

	assertContains(t, mustRun(t, "--user", "alice", "update", id, "-a", "440"), "Updated "+id)
	assertContains(t, mustRun(t, "--user", "alice", "list"), "￥440", "交通費")

	assertContains(t, mustRun(t, "--user", "alice", "delete", id), "Deleted "+id)
	assertContains(t, mustRun(t, "--user", "alice", "delete", id), "nothing to delete")

	out := mustRun(t, "--user", "alice", "update", "manual-1", "--date", "2024-02-02", "-c", "娯楽", "-a", "1500")
	assertContains(t, out, "Created manual-1")
}

func TestCategoriesCommands(t *testing.T) {
	setupEnv(t)

	assertContains(t, mustRun(t, "categories", "list"), "食費: 食料品, 外食, カフェ", "娯楽")
	mustRun(t, "categories", "add", "医療費")
	assertContains(t, mustRun(t, "categories", "add-sub", "医療費", "薬"), "医療費: 薬")

	out := mustRun(t, "categories", "rm", "娯楽")
	assertContains(t, out, "Not removed from the store", "  娯楽")
	assertContains(t, mustRun(t, "categories", "list"), "娯楽")

	mustRun(t, "categories", "rm", "娯楽", "--reconcile")
	mustRun(t, "categories", "reconcile", "食費/カフェ")
	out = mustRun(t, "categories", "list")
	if strings.Contains(out, "娯楽") || strings.Contains(out, "カフェ") {
		t.Fatalf("reconciled deletions still listed:\n%s", out)
	}
	assertContains(t, out, "医療費: 薬", "食費: 食料品, 外食")

	if _, err := run(t, "categories", "add-sub", "存在しない", "x"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestExport(t *testing.T) {
	setupEnv(t)
	mustRun(t, "--user", "alice", "add", "--date", "2024-03-02", "-c", `食費 "特売"`, "-a", "980")
	mustRun(t, "--user", "alice", "add", "--date", "2024-03-01", "-c", "給与", "-a", "1000", "-t", "収入")

	out := mustRun(t, "--user", "alice", "export")
	if !strings.HasPrefix(out, "\ufeff日付,カテゴリ,金額,タイプ,ID\r\n") {
		t.Fatalf("unexpected csv header %q", out)
	}
	lines := strings.Split(out, "\r\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], `"2024-03-01","給与","1000","収入",`) ||
		!strings.HasPrefix(lines[2], `"2024-03-02","食費 ""特売""","980","支出",`) {
		t.Fatalf("unexpected csv rows %q", lines)
	}

	if _, err := run(t, "--user", "alice", "export", "-f", "xlsx"); err == nil {
		t.Fatalf("xlsx to stdout should be refused")
	}
	path := filepath.Join(t.TempDir(), "kakeibo.xlsx")
	mustRun(t, "--user", "alice", "export", "-f", "xlsx", "-o", path)
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("xlsx not written: %v", err)
	}

	if out := mustRun(t, "--user", "alice", "export", "--month", "2023-12"); out != "" {
		t.Fatalf("empty export should write nothing, got %q", out)
	}
}

func TestMirrorNeedsInfrastructure(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "mirror"); !errors.Is(err, ledger.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
	if _, err := run(t, "--user", "alice", "mirror"); !errors.Is(err, backend.ErrNoMirror) {
		t.Fatalf("expected ErrNoMirror, got %v", err)
	}
}
