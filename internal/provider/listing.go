package provider

import (
	"regexp"
	"strings"

	"jobscout/internal/types"
)

// Free-text listing parser shared by backends that answer in prose
// (numbered lists or blank-line separated blocks).

var (
	numberedMarker = regexp.MustCompile(`(?m)^[ \t]*\d+[.)][ \t]+`)
	blankLines     = regexp.MustCompile(`\n[ \t]*\n\s*`)
	markdownNoise  = strings.NewReplacer("**", "", "__", "", "`", "")

	roleTitle = regexp.MustCompile(`(?i)^(.*\b(?:engineer|developer|designer|manager|director|specialist|analyst|consultant|assistant|representative|coordinator|agent|officer|administrator|lead|head|chief|architect|scientist|advisor|support|operator|technician|vp|executive|president|coo|ceo|cto|cfo)s?)\s+(\S.*)$`)

	labeledLine = regexp.MustCompile(`(?i)^(?:[-*•]\s*)?(location|located in|job type|employment type|position type|type|salary|compensation|pay|description|job description|summary|about the role|about the job|responsibilities|key requirements|key qualifications|requirements|qualifications|skills|what you'll need|benefits|perks|what we offer|we offer|apply|apply at|application|application link|how to apply|link|url|posted|date posted)\s*(?::|-|–)\s*(.*)$`)
	bulletLine  = regexp.MustCompile(`^\s*(?:[*\-•◦‣⁃▪▹►▻▸]|\d+[.)])\s*(.*)$`)

	locationPhrase = regexp.MustCompile(`(?i)\b(?:based in|located in|remote in)\s+([A-Za-z][A-Za-z .]+(?:,\s*[A-Za-z .]+)?)`)
	cityState      = regexp.MustCompile(`\b([A-Z][A-Za-z .]+,\s*[A-Z]{2})\b`)
	workMode       = regexp.MustCompile(`(?i)\b(remote|hybrid|on-site|onsite|work from home|wfh)\b`)
	jobTypeWord    = regexp.MustCompile(`(?i)\b(full[- ]?time|part[- ]?time|contractor|contract|temporary|freelance|permanent|internship)\b`)
	salaryAmount   = regexp.MustCompile(`(?i)((?:\$|USD|EUR|GBP|£|€)\s*\d[\d,.]*k?(?:\s*(?:-|–|to)\s*(?:\$|USD|EUR|GBP|£|€)?\s*\d[\d,.]*k?)?(?:\s*(?:per|/|a)\s*(?:year|annum|month|hour|yr|mo|hr))?)`)
	urlPattern     = regexp.MustCompile(`(?:https?://|www\.)\S+`)
)

// splitListings breaks prose into one chunk per listing. A numbered list wins;
// the text before the first number is treated as an intro and dropped.
func splitListings(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	if idx := numberedMarker.FindAllStringIndex(content, -1); len(idx) > 0 {
		sections := make([]string, 0, len(idx))
		for i, loc := range idx {
			end := len(content)
			if i+1 < len(idx) {
				end = idx[i+1][0]
			}
			sections = append(sections, content[loc[1]:end])
		}
		return sections
	}

	return blankLines.Split(content, -1)
}

// parseListing extracts a RawJob from one chunk. Chunks too short to be a
// listing are rejected.
func parseListing(text string) (types.RawJob, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 10 {
		return types.RawJob{}, false
	}

	job := types.RawJob{FullText: text}
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(markdownNoise.Replace(lines[i]))
		lines[i] = strings.TrimLeft(lines[i], "# ")
	}

	job.Title, job.Company = splitTitleLine(lines[0])

	var (
		section   string
		sawBullet bool
		freeLines []string
		descLines []string
	)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}

		if m := labeledLine.FindStringSubmatch(line); m != nil {
			section = canonicalLabel(m[1])
			sawBullet = false
			value := strings.TrimSpace(m[2])
			switch section {
			case "location":
				job.Location = value
			case "job_type":
				job.JobType = value
			case "salary":
				job.Salary = value
			case "date_posted":
				job.DatePosted = value
			case "description":
				if value != "" {
					descLines = append(descLines, value)
				}
			case "apply":
				if u := urlPattern.FindString(value); u != "" {
					job.ApplicationLink = trimURL(u)
				}
			case "requirements":
				job.Requirements = append(job.Requirements, splitInline(value)...)
			case "benefits":
				job.Benefits = append(job.Benefits, splitInline(value)...)
			}
			continue
		}

		item := line
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			item = strings.TrimSpace(m[1])
			sawBullet = true
		} else if sawBullet && (section == "requirements" || section == "benefits") {
			// a plain line after bullets closes the list
			section = ""
		}
		switch section {
		case "requirements":
			job.Requirements = appendNonEmpty(job.Requirements, item)
		case "benefits":
			job.Benefits = appendNonEmpty(job.Benefits, item)
		case "description":
			descLines = append(descLines, line)
		default:
			freeLines = append(freeLines, line)
		}
	}

	if len(descLines) > 0 {
		job.Description = strings.Join(descLines, "\n")
	} else if len(freeLines) > 0 {
		job.Description = strings.Join(freeLines, "\n")
	}

	fillFromProse(&job, text)
	return job, true
}

// splitTitleLine reads "Title at Company" and its variants. Without a
// separator it splits after the last role word, if any.
func splitTitleLine(line string) (title, company string) {
	line = strings.TrimSpace(strings.TrimRight(line, ":"))
	for _, sep := range []string{" at ", " @ ", ": ", " | ", " - ", " – "} {
		if before, after, ok := strings.Cut(line, sep); ok {
			return strings.TrimSpace(before), strings.TrimSpace(after)
		}
	}
	if m := roleTitle.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return line, ""
}

func canonicalLabel(label string) string {
	switch strings.ToLower(label) {
	case "location", "located in":
		return "location"
	case "job type", "employment type", "position type", "type":
		return "job_type"
	case "salary", "compensation", "pay":
		return "salary"
	case "description", "job description", "summary", "about the role", "about the job", "responsibilities":
		return "description"
	case "requirements", "key requirements", "key qualifications", "qualifications", "skills", "what you'll need":
		return "requirements"
	case "benefits", "perks", "what we offer", "we offer":
		return "benefits"
	case "posted", "date posted":
		return "date_posted"
	}
	return "apply"
}

// fillFromProse fills fields the labeled pass missed by scanning the whole text.
func fillFromProse(job *types.RawJob, text string) {
	if job.Location == "" {
		if m := locationPhrase.FindStringSubmatch(text); m != nil {
			job.Location = strings.TrimSpace(m[1])
		} else if m := cityState.FindStringSubmatch(text); m != nil {
			job.Location = strings.TrimSpace(m[1])
		} else if m := workMode.FindStringSubmatch(text); m != nil {
			job.Location = m[1]
		}
	}
	if job.JobType == "" {
		if m := jobTypeWord.FindStringSubmatch(text); m != nil {
			job.JobType = m[1]
		}
	}
	if job.Salary == "" {
		if m := salaryAmount.FindStringSubmatch(text); m != nil {
			job.Salary = strings.TrimSpace(m[1])
		}
	}
	if job.ApplicationLink == "" {
		if u := urlPattern.FindString(text); u != "" {
			job.ApplicationLink = trimURL(u)
		}
	}
}

func trimURL(u string) string {
	return strings.TrimRight(u, ").,;]>*")
}

func splitInline(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == ',' }) {
		out = appendNonEmpty(out, part)
	}
	return out
}

func appendNonEmpty(list []string, item string) []string {
	if item = strings.TrimSpace(item); item != "" {
		return append(list, item)
	}
	return list
}
