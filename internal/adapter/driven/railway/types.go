package railway

import (
	"bytes"
	"encoding/json"
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type meData struct {
	Me struct {
		ID    string  `json:"id"`
		Email string  `json:"email"`
		Name  *string `json:"name"`
	} `json:"me"`
}

type teamsData struct {
	Teams struct {
		Edges []struct {
			Node struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"teams"`
}

type idName struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type projectsData struct {
	Projects struct {
		Edges []struct {
			Node struct {
				ID       string `json:"id"`
				Name     string `json:"name"`
				Services struct {
					Edges []struct {
						Node idName `json:"node"`
					} `json:"edges"`
				} `json:"services"`
				Environments struct {
					Edges []struct {
						Node idName `json:"node"`
					} `json:"edges"`
				} `json:"environments"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"projects"`
}

type deploymentNode struct {
	ID        string     `json:"id"`
	StaticURL string     `json:"staticUrl"`
	Status    string     `json:"status"`
	CreatedAt string     `json:"createdAt"`
	UpdatedAt string     `json:"updatedAt"`
	Meta      metaScalar `json:"meta"`
}

type deploymentsData struct {
	Deployments struct {
		Edges []struct {
			Node deploymentNode `json:"node"`
		} `json:"edges"`
	} `json:"deployments"`
}

type deploymentData struct {
	Deployment deploymentNode `json:"deployment"`
}

// metaScalar is the deployment "meta" JSON scalar. Railway usually sends an
// object but some deployments carry it as an encoded string, or null.
type metaScalar struct {
	CommitMessage string `json:"commitMessage"`
	Branch        string `json:"branch"`
	CommitHash    string `json:"commitHash"`
}

func (m *metaScalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return err
		}
		if encoded == "" {
			return nil
		}
		data = []byte(encoded)
	}

	type plain metaScalar
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		// An unreadable meta only loses commit details.
		return nil
	}
	*m = metaScalar(p)
	return nil
}
