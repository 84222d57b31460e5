// Package runinfo captures provenance metadata recorded into workload
// artifacts.
package runinfo

import (
	"os"
	"strings"
	"time"
)

// BasicInfo describes where and when a construction run happened.
type BasicInfo struct {
	Host       string `json:"host,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	CI         bool   `json:"ci,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Repository string `json:"repository,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Commit     string `json:"commit,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	BuildURL   string `json:"build_url,omitempty"`
}

// FromEnv builds run metadata from the host and CI environment variables.
func FromEnv() *BasicInfo {
	info := &BasicInfo{
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if host, err := os.Hostname(); err == nil {
		info.Host = host
	}
	if isTruthy(env("GITHUB_ACTIONS")) {
		info.CI = true
		info.Provider = "github_actions"
		info.Repository = env("GITHUB_REPOSITORY")
		info.Branch = envFirst("GITHUB_HEAD_REF", "GITHUB_REF_NAME")
		info.Commit = env("GITHUB_SHA")
		info.RunID = env("GITHUB_RUN_ID")
		server := env("GITHUB_SERVER_URL")
		if server == "" {
			server = "https://github.com"
		}
		if info.Repository != "" && info.RunID != "" {
			info.BuildURL = strings.TrimRight(server, "/") + "/" + info.Repository + "/actions/runs/" + info.RunID
		}
		return info
	}
	if isTruthy(env("CI")) {
		info.CI = true
		info.Provider = strings.ToLower(envFirst("CI_PROVIDER", "CI_SYSTEM"))
		if info.Provider == "" {
			info.Provider = "generic"
		}
		info.Repository = env("CI_PROJECT_PATH")
		info.Branch = envFirst("CI_COMMIT_REF_NAME", "BRANCH_NAME", "GIT_BRANCH")
		info.Commit = envFirst("CI_COMMIT_SHA", "GIT_COMMIT")
		info.RunID = envFirst("CI_PIPELINE_ID", "BUILD_ID")
		info.BuildURL = envFirst("CI_JOB_URL", "BUILD_URL")
	}
	return info
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envFirst(keys ...string) string {
	for _, key := range keys {
		if value := env(key); value != "" {
			return value
		}
	}
	return ""
}

func isTruthy(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
