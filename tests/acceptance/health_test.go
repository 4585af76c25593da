package acceptance

import "net/http"

func (s *Suite) TestHealth() {
	resp, err := http.Get(s.BaseURL + "/health")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var health map[string]any
	s.decode(resp, &health)
	s.Equal("pass", health["status"])
}

func (s *Suite) TestMetrics() {
	resp, err := http.Get(s.BaseURL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
}
