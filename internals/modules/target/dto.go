package target

type TargetResponse struct {
	ID               string            `json:"id"`
	Kind             string            `json:"kind"`
	Address          string            `json:"address"`
	CheckInterval    string            `json:"check_interval"`
	FailureThreshold int               `json:"failure_threshold"`
	SuccessThreshold int               `json:"success_threshold"`
	Status           map[string]string `json:"status,omitempty"`
}

type ListTargetsResponse struct {
	Targets []TargetResponse `json:"targets"`
}
