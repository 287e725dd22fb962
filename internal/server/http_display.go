package server

import (
	"fmt"

	"jobscout/internal/utils"
)

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displaySources()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET    /health                   - Health check")
	fmt.Println("  GET    /stats                    - Server statistics")
	fmt.Println("  POST   /search                   - Search for jobs")
	fmt.Println("  GET    /sources                  - List job sources")
	fmt.Println("  GET    /sources/{name}           - Show a job source")
	fmt.Println("  POST   /sources/{name}/enable    - Enable a job source")
	fmt.Println("  POST   /sources/{name}/disable   - Disable a job source")
	fmt.Println("  POST   /sources/{name}/priority  - Set priority")
	fmt.Println("  POST   /sources/{name}/weight    - Set load balancing weight")
	fmt.Println("  POST   /sources/{name}/config    - Merge source config")
	fmt.Println("  DELETE /sources/{name}           - Remove a job source")
	fmt.Println("  POST   /sources/config/save      - Save registry snapshot")
	fmt.Println("  POST   /sources/config/load      - Load registry snapshot")
}

// displaySources shows the registered job sources
func (s *Server) displaySources() {
	total, enabled := s.Registry.Len()
	fmt.Printf("Job sources: %d registered, %d enabled\n", total, enabled)
	for _, info := range s.Registry.InfoAll() {
		state := "disabled"
		if info.Enabled {
			state = "enabled"
		}
		fmt.Printf("  - %-12s %-8s priority=%d weight=%d\n", info.Name, state, info.Priority, info.Weight)
	}
	if enabled == 0 {
		fmt.Println("WARNING: no job sources are enabled, searches will fail!")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%s)\n", s.MaxRequestSize, utils.FormatFileSize(s.MaxRequestSize))
	} else {
		fmt.Println("Request size limit: DISABLED")
		fmt.Println("WARNING: No request size limits configured!")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByHeader != "" {
			fmt.Printf("  - Per %s header rate limiting enabled\n", s.RateLimit.ByHeader)
		}
		if s.RateLimit.ByIP {
			fmt.Println("  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Println("Rate limiting: DISABLED")
	}
}
