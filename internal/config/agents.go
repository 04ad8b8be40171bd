package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Agent binds an agent name to a LangGraph deployment and graph.
type Agent struct {
	Name          string `yaml:"name"`
	DeploymentURL string `yaml:"deployment_url"`
	GraphID       string `yaml:"graph_id"`
	TracingAPIKey string `yaml:"tracing_api_key"`
}

func (a Agent) validate() error {
	if a.GraphID == "" {
		return fmt.Errorf("graph_id must not be empty")
	}
	u, err := url.Parse(a.DeploymentURL)
	if err != nil {
		return fmt.Errorf("deployment_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("deployment_url must be http(s), got %q", a.DeploymentURL)
	}
	return nil
}

// DefaultAgents returns the two graphs the product ships with, both served
// by the same deployment.
func DefaultAgents(deploymentURL, tracingKey string) map[string]Agent {
	agents := make(map[string]Agent, 2)
	for _, name := range []string{AgentHumanInTheLoop, AgentInsuranceAdvisor} {
		agents[name] = Agent{
			Name:          name,
			DeploymentURL: deploymentURL,
			GraphID:       name,
			TracingAPIKey: tracingKey,
		}
	}
	return agents
}

type agentsFile struct {
	Agents []Agent `yaml:"agents"`
}

// LoadAgentsFile reads extra agent bindings from a YAML file. Entries that
// omit deployment_url or tracing_api_key inherit the environment values,
// and graph_id defaults to the agent name.
func LoadAgentsFile(path, deploymentURL, tracingKey string) (map[string]Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var f agentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse agents file: %w", err)
	}

	agents := make(map[string]Agent, len(f.Agents))
	for i, a := range f.Agents {
		if a.Name == "" {
			return nil, fmt.Errorf("agents file: entry %d has no name", i)
		}
		if a.DeploymentURL == "" {
			a.DeploymentURL = deploymentURL
		}
		if a.GraphID == "" {
			a.GraphID = a.Name
		}
		if a.TracingAPIKey == "" {
			a.TracingAPIKey = tracingKey
		}
		agents[a.Name] = a
	}
	return agents, nil
}
