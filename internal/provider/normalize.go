package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"jobscout/internal/types"
)

// normalize maps a RawJob onto the shared schema. Blank scalars become
// types.Unknown and nil lists become empty lists.
func normalize(source string, job types.RawJob) types.NormalizedJob {
	sourceID := job.ExternalID
	if sourceID == "" {
		sourceID = contentID(job)
	}

	return types.NormalizedJob{
		Source:          source,
		SourceID:        source + "_" + sourceID,
		Title:           orUnknown(job.Title),
		Company:         orUnknown(job.Company),
		Location:        orUnknown(job.Location),
		JobType:         orUnknown(job.JobType),
		Salary:          orUnknown(job.Salary),
		Description:     orUnknown(job.Description),
		Requirements:    nonNil(job.Requirements),
		Benefits:        nonNil(job.Benefits),
		ApplicationLink: orUnknown(job.ApplicationLink),
		DatePosted:      orUnknown(job.DatePosted),
		FullText:        orUnknown(job.FullText),
		RawData:         rawData(job),
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return types.Unknown
	}
	return strings.TrimSpace(s)
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

// contentID derives a stable id from the listing text.
func contentID(job types.RawJob) string {
	seed := job.FullText
	if seed == "" {
		seed = job.Title + "|" + job.Company + "|" + job.Location
	}
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:8])
}

func rawData(job types.RawJob) map[string]any {
	data := map[string]any{}
	if job.ExternalID != "" {
		data["external_id"] = job.ExternalID
	}
	for k, v := range job.Extra {
		data[k] = v
	}
	if len(data) == 0 {
		return nil
	}
	return data
}
