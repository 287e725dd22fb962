package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"jobscout/internal/errors"
	"jobscout/internal/types"
)

// SampleRef identifies the offline sample provider
var SampleRef = Ref{Module: "provider/sample", Class: "SampleProvider"}

const sampleSource = "sample"

func init() {
	Register(SampleRef, func(deps Deps) (Provider, error) {
		return NewSampleProvider(), nil
	})
}

var (
	sampleTitles = []string{
		"Software Engineer", "Senior Developer", "Full Stack Engineer",
		"Frontend Developer", "Backend Engineer", "DevOps Engineer",
		"Data Scientist", "Machine Learning Engineer", "UI/UX Designer",
		"Product Manager", "Project Manager", "QA Engineer",
		"Technical Writer", "Database Administrator", "Cloud Architect",
	}
	sampleCompanies = []string{
		"TechCorp", "InnoSoft", "CodeMasters", "DataMinds", "CloudFlow",
		"DevHub", "PixelPerfect", "Algorithmix", "ByteWorks", "NexGen",
		"FutureTech", "WebSphere", "AppNexus", "CyberSys", "Quantum Computing",
	}
	sampleLocations = []string{
		"San Francisco, CA", "New York, NY", "Austin, TX", "Seattle, WA",
		"Boston, MA", "Chicago, IL", "Denver, CO", "Los Angeles, CA",
		"Atlanta, GA", "Portland, OR", "Remote", "Hybrid - San Francisco",
		"Hybrid - New York", "Hybrid - Seattle", "Remote - US",
	}
	sampleSkills = []string{
		"Python", "JavaScript", "React", "TypeScript", "Node.js", "Django", "Flask",
		"AWS", "Docker", "Kubernetes", "SQL", "NoSQL", "MongoDB", "PostgreSQL",
		"Git", "CI/CD", "REST API", "GraphQL", "Java", "C#", "Go", "Rust",
		"Machine Learning", "TensorFlow", "PyTorch", "Data Analysis", "Linux",
		"Agile", "Scrum", "Team Leadership", "Communication", "Problem Solving",
	}
	sampleJobTypes = []string{
		"Full-time", "Part-time", "Contract", "Freelance",
		"Internship", "Temporary", "Permanent",
	}
	sampleBenefits = []string{
		"Health insurance", "Dental insurance", "Vision insurance",
		"401(k) matching", "Unlimited PTO", "Remote work options",
		"Flexible schedule", "Professional development budget",
		"Gym membership", "Stock options", "Performance bonuses",
		"Company events", "Free lunch", "Mental health resources",
		"Paid parental leave", "Education reimbursement",
	}
)

// SampleProvider generates plausible listings without touching the network.
// It answers in the chat-completion envelope so it exercises the same
// parsing path as the prose backends.
type SampleProvider struct{}

var _ Provider = (*SampleProvider)(nil)

func NewSampleProvider() *SampleProvider {
	return &SampleProvider{}
}

func (s *SampleProvider) Ref() Ref { return SampleRef }

// SearchJobs implements Provider. A "seed" param makes the output repeatable.
func (s *SampleProvider) SearchJobs(ctx context.Context, query types.Query, params Params) (types.RawResult, error) {
	if strings.TrimSpace(query.Keywords) == "" {
		return types.RawResult{}, errors.InvalidQuery("keywords are required").WithContext("provider", sampleSource)
	}
	if err := ctx.Err(); err != nil {
		return types.RawResult{}, errors.ProviderUnavailable(sampleSource, err)
	}

	rng := sampleRand(params)
	content := generateListings(rng, query)

	body, err := json.Marshal(chatBody{
		Model:   "sample",
		Choices: &[]chatChoice{{Message: &chatMessage{Content: &content}}},
	})
	if err != nil {
		return types.RawResult{}, errors.NewInternalError(errors.ErrCodeInternal, "failed to encode sample listings", err)
	}
	return types.RawResult{Source: sampleSource, Body: body, ReceivedAt: time.Now().UTC()}, nil
}

func sampleRand(params Params) *rand.Rand {
	if _, ok := params[ParamSeed]; ok {
		seed := uint64(params.Int(ParamSeed, 0))
		return rand.New(rand.NewPCG(seed, seed))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func generateListings(rng *rand.Rand, query types.Query) string {
	keywords := strings.Fields(strings.ToLower(query.Keywords))

	titles := filterStrings(sampleTitles, func(title string) bool {
		return containsAny(strings.ToLower(title), keywords)
	})
	if len(titles) == 0 {
		titles = sampleTitles
	}

	locations := sampleLocations
	if query.Location != "" {
		want := strings.ToLower(query.Location)
		locations = filterStrings(sampleLocations, func(loc string) bool {
			return strings.Contains(strings.ToLower(loc), want) || (query.Filters.Remote && isFlexible(loc))
		})
	}
	if query.Filters.Remote {
		locations = filterStrings(locations, isFlexible)
	}
	if len(locations) == 0 {
		locations = []string{query.Location}
	}

	prefix := ""
	switch strings.ToLower(query.Filters.ExperienceLevel) {
	case types.LevelEntry:
		prefix = "Junior "
	case types.LevelSenior:
		prefix = "Senior "
	}

	maxDaysAgo := 30
	switch query.Filters.Recency {
	case types.RecencyHour:
		maxDaysAgo = 0
	case types.RecencyDay:
		maxDaysAgo = 1
	case types.RecencyWeek:
		maxDaysAgo = 7
	}

	count := 3 + rng.IntN(6)
	listings := make([]string, 0, count)
	for range count {
		title := titles[rng.IntN(len(titles))]
		if prefix != "" && !strings.HasPrefix(title, prefix) {
			title = prefix + title
		}

		minSalary := (70 + rng.IntN(81)) * 1000
		maxSalary := minSalary + (10+rng.IntN(41))*1000

		posted := fmt.Sprintf("%d days ago", rng.IntN(maxDaysAgo+1))
		if posted == "0 days ago" {
			posted = fmt.Sprintf("%d hours ago", 1+rng.IntN(12))
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s at %s\n", title, sampleCompanies[rng.IntN(len(sampleCompanies))])
		fmt.Fprintf(&b, "Location: %s\n", locations[rng.IntN(len(locations))])
		fmt.Fprintf(&b, "Job Type: %s\n", sampleJobTypes[rng.IntN(len(sampleJobTypes))])
		fmt.Fprintf(&b, "Salary: %s - %s per year\n", dollars(minSalary), dollars(maxSalary))
		fmt.Fprintf(&b, "Posted: %s\n", posted)
		b.WriteString("Requirements:\n")
		for _, req := range pickRequirements(rng, keywords) {
			fmt.Fprintf(&b, "- %s\n", req)
		}
		b.WriteString("Benefits:\n")
		for _, idx := range rng.Perm(len(sampleBenefits))[:3+rng.IntN(3)] {
			fmt.Fprintf(&b, "- %s\n", sampleBenefits[idx])
		}
		listings = append(listings, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(listings, "\n\n")
}

// pickRequirements favours skills that mention a keyword, then pads with
// random distinct skills.
func pickRequirements(rng *rand.Rand, keywords []string) []string {
	want := 3 + rng.IntN(4)
	seen := map[string]bool{}
	var reqs []string
	for _, kw := range keywords {
		matching := filterStrings(sampleSkills, func(skill string) bool {
			return strings.Contains(strings.ToLower(skill), kw)
		})
		if len(matching) > 0 {
			skill := matching[rng.IntN(len(matching))]
			if !seen[skill] {
				seen[skill] = true
				reqs = append(reqs, skill)
			}
		}
	}
	for len(reqs) < want {
		skill := sampleSkills[rng.IntN(len(sampleSkills))]
		if !seen[skill] {
			seen[skill] = true
			reqs = append(reqs, skill)
		}
	}
	rng.Shuffle(len(reqs), func(i, j int) { reqs[i], reqs[j] = reqs[j], reqs[i] })
	return reqs
}

func dollars(n int) string {
	return fmt.Sprintf("$%d,%03d", n/1000, n%1000)
}

func isFlexible(loc string) bool {
	return strings.Contains(loc, "Remote") || strings.Contains(loc, "Hybrid")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func filterStrings(in []string, keep func(string) bool) []string {
	var out []string
	for _, s := range in {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// ParseResults implements Provider
func (s *SampleProvider) ParseResults(raw types.RawResult) ([]types.RawJob, error) {
	return parseChatBody(sampleSource, raw.Body)
}

// NormalizeJob implements Provider. The description is the header block
// above "Requirements:" and the link is derived from title and company.
func (s *SampleProvider) NormalizeJob(job types.RawJob) types.NormalizedJob {
	if job.Description == "" {
		if head, _, ok := strings.Cut(job.FullText, "Requirements:"); ok {
			job.Description = strings.TrimSpace(head)
		}
	}
	if job.ApplicationLink == "" {
		sum := sha256.Sum256([]byte(job.Title + job.Company))
		job.ApplicationLink = "https://example.com/jobs/" + hex.EncodeToString(sum[:8])
	}
	return normalize(sampleSource, job)
}
