package services

import (
	"sgchat/contract"
	"sgchat/runtime"
)

// IChatService is the surface the transport talks to: one call to attach
// a connection, after which all chat operations go through the returned
// session (operations from one connection are strictly sequential).
type IChatService interface {
	Connect(token string, sink contract.EventSink) (*runtime.Session, runtime.ConnectResult, error)
}

type ChatService struct {
	sessions *runtime.SessionManager
}

func NewChatService(sessions *runtime.SessionManager) IChatService {
	return &ChatService{sessions: sessions}
}

func (s *ChatService) Connect(token string, sink contract.EventSink) (*runtime.Session, runtime.ConnectResult, error) {
	return s.sessions.Connect(token, sink)
}
