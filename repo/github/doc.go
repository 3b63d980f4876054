// Package github implements repo.Client and repo.Account on top of the GitHub
// git-data REST API (cloud or enterprise). Build one Client per credential
// with New; there is no shared SDK client. Set EnterpriseHost for GitHub
// Enterprise installations, or BaseURL to point at any API root.
package github
