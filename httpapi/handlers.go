package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/byte4ever/workbench_sync/repo"
	"github.com/byte4ever/workbench_sync/termerr"
)

const defaultRepoLimit = 100

type pushRequest struct {
	Owner         string            `json:"owner"`
	Repo          string            `json:"repo"`
	Branch        string            `json:"branch"`
	Files         []repo.FileChange `json:"files"`
	CommitMessage string            `json:"commitMessage"`
}

type pushResponse struct {
	Success bool              `json:"success"`
	Commit  string            `json:"commit"`
	Owner   string            `json:"owner"`
	Repo    string            `json:"repo"`
	Branch  string            `json:"branch"`
	Record  repo.CommitRecord `json:"record"`
}

type commitsResponse struct {
	Commits []repo.CommitRecord `json:"commits"`
}

type reposResponse struct {
	Repos []repo.Repository `json:"repos"`
}

type createRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
}

type repoResponse struct {
	Repo repo.Repository `json:"repo"`
}

type classifyRequest struct {
	Output string `json:"output"`
}

type classifyResponse struct {
	termerr.Record
	Title       string   `json:"title"`
	Hint        string   `json:"hint"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	cred, acct, ok := s.account(w, r)
	if !ok {
		return
	}

	var req pushRequest
	if !decode(w, r, &req) {
		return
	}

	owner, ok := s.owner(w, r, acct, req.Owner)
	if !ok {
		return
	}

	branch := repo.BranchOrDefault(req.Branch)
	ref := repo.Ref{Owner: owner, Name: req.Repo}

	rec, err := s.pusher.Push(
		r.Context(), cred, ref, branch, req.Files, req.CommitMessage,
	)
	if err != nil {
		writeFailure(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, pushResponse{
		Success: true,
		Commit:  rec.ID,
		Owner:   owner,
		Repo:    req.Repo,
		Branch:  branch,
		Record:  rec,
	})
}

func (s *Server) handleCommits(w http.ResponseWriter, r *http.Request) {
	cred, acct, ok := s.account(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()

	perPage, ok := intParam(w, q.Get("per_page"), "per_page")
	if !ok {
		return
	}

	owner, ok := s.owner(w, r, acct, q.Get("owner"))
	if !ok {
		return
	}

	commits, err := s.pusher.FetchCommits(
		r.Context(),
		cred,
		repo.Ref{Owner: owner, Name: q.Get("repo")},
		q.Get("branch"),
		perPage,
	)
	if err != nil {
		writeFailure(w, r, err)

		return
	}

	if commits == nil {
		commits = []repo.CommitRecord{}
	}

	writeJSON(w, http.StatusOK, commitsResponse{Commits: commits})
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	_, acct, ok := s.account(w, r)
	if !ok || !supported(w, acct) {
		return
	}

	limit, ok := intParam(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}

	if limit <= 0 {
		limit = defaultRepoLimit
	}

	repos, err := acct.ListRepositories(r.Context(), limit)
	if err != nil {
		writeFailure(w, r, err)

		return
	}

	if repos == nil {
		repos = []repo.Repository{}
	}

	writeJSON(w, http.StatusOK, reposResponse{Repos: repos})
}

func (s *Server) handleCreateRepo(w http.ResponseWriter, r *http.Request) {
	_, acct, ok := s.account(w, r)
	if !ok || !supported(w, acct) {
		return
	}

	var req createRepoRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeFailure(w, r, repo.Invalid("name", "must not be empty"))

		return
	}

	created, err := acct.CreateRepository(
		r.Context(), req.Name, req.Description, req.Private,
	)
	if err != nil {
		writeFailure(w, r, err)

		return
	}

	writeJSON(w, http.StatusCreated, repoResponse{Repo: created})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, s.classify(req.Output))
}

// owner returns requested, or the login behind the
// credential when requested is empty.
func (s *Server) owner(
	w http.ResponseWriter,
	r *http.Request,
	acct repo.Account,
	requested string,
) (string, bool) {
	if requested != "" {
		return requested, true
	}

	if acct == nil {
		writeFailure(w, r, repo.Invalid("owner", "must not be empty"))

		return "", false
	}

	login, err := acct.Login(r.Context())
	if err != nil {
		writeFailure(w, r, err)

		return "", false
	}

	return login, true
}

func supported(w http.ResponseWriter, acct repo.Account) bool {
	if acct != nil {
		return true
	}

	writeError(
		w, http.StatusNotImplemented,
		"repository management is not available on this backend",
	)

	return false
}

func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+": "+raw)

		return 0, false
	}

	return n, true
}
