package service

type Service struct {
	AgentService AgentServiceInterface
}

func New(agent AgentServiceInterface) *Service {
	return &Service{AgentService: agent}
}
