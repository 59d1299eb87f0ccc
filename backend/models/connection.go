package models

// ConnectionRequest asks the backend to (re)connect to a model server.
type ConnectionRequest struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// ConnectionResult is the outcome of a model connectivity test.
type ConnectionResult struct {
	Connected       bool     `json:"connected"`
	Message         string   `json:"message"`
	SuggestedModel  string   `json:"suggested_model,omitempty"`
	AvailableModels []string `json:"available_models,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// ModelAvailable reports whether model is among the models the server listed.
func (r ConnectionResult) ModelAvailable(model string) bool {
	for _, name := range r.AvailableModels {
		if name == model {
			return true
		}
	}
	return false
}

// LoadRepositoryRequest starts indexing a remote repository.
type LoadRepositoryRequest struct {
	RepoURL   string `json:"repo_url"`
	AuthToken string `json:"auth_token,omitempty"`
}

// LoadDirectoryRequest starts indexing a directory visible to the backend.
type LoadDirectoryRequest struct {
	DirectoryPath string `json:"directory_path"`
}

// SetModelRequest changes the backend's active model.
type SetModelRequest struct {
	Model string `json:"model"`
}

// Envelope is the {success, message, error} wrapper most endpoints reply with.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
