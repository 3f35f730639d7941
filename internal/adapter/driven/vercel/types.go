package vercel

import "github.com/ericfisherdev/deploybar/internal/domain/model"

type userResponse struct {
	User struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"user"`
}

type tokenResponse struct {
	Token struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Type   string `json:"type"`
		TeamID string `json:"teamId"`
	} `json:"token"`
}

type teamResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type projectsResponse struct {
	Projects []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Framework string `json:"framework"`
		UpdatedAt int64  `json:"updatedAt"`
	} `json:"projects"`
}

type deploymentsResponse struct {
	Deployments []deploymentJSON `json:"deployments"`
}

// deploymentJSON is shared by the v6 list and v13 single-deployment endpoints.
// v13 reports the identifier as "id" rather than "uid".
type deploymentJSON struct {
	UID        string `json:"uid"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	State      string `json:"state"`
	ReadyState string `json:"readyState"`
	CreatedAt  *int64 `json:"createdAt"`
	BuildingAt *int64 `json:"buildingAt"`
	Ready      *int64 `json:"ready"`
	ProjectID  string `json:"projectId"`
	Meta       struct {
		CommitMessage   string `json:"githubCommitMessage"`
		CommitRef       string `json:"githubCommitRef"`
		CommitAuthorLog string `json:"githubCommitAuthorLogin"`
	} `json:"meta"`
	Creator struct {
		UID      string `json:"uid"`
		Username string `json:"username"`
	} `json:"creator"`
}

func (d deploymentJSON) toModel() model.VercelDeployment {
	uid := d.UID
	if uid == "" {
		uid = d.ID
	}
	return model.VercelDeployment{
		UID:            uid,
		Name:           d.Name,
		URL:            d.URL,
		State:          d.State,
		ReadyState:     d.ReadyState,
		CreatedAt:      d.CreatedAt,
		BuildingAt:     d.BuildingAt,
		ReadyAt:        d.Ready,
		ProjectID:      d.ProjectID,
		CommitMessage:  d.Meta.CommitMessage,
		Branch:         d.Meta.CommitRef,
		GitAuthorLogin: d.Meta.CommitAuthorLog,
		Creator:        d.Creator.Username,
	}
}

// logEvent is one build event. Streamed events carry the text in the
// payload; the array form returned without follow carries it at the top.
type logEvent struct {
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Text    string `json:"text"`
	Payload *struct {
		Text    string `json:"text"`
		Created int64  `json:"date"`
	} `json:"payload"`
}

func (e logEvent) line() (model.LogLine, bool) {
	text := e.Text
	if e.Payload != nil && e.Payload.Text != "" {
		text = e.Payload.Text
	}
	if text == "" {
		return model.LogLine{}, false
	}
	return model.LogLine{
		Timestamp: e.Created,
		Text:      text,
		IsError:   isErrorText(text),
	}, true
}
