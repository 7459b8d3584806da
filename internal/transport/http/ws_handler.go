package http

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/domain"

	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.PracticeService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.PracticeService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type nextPayload struct {
	SkipCurrent bool `json:"skipCurrent"`
}

type answerPayload struct {
	QuestionUID     string `json:"questionUid"`
	SelectedAnswers []any  `json:"selectedAnswers"`
	TimeSpentMs     int64  `json:"timeSpentMs"`
}

type retryPayload struct {
	QuestionUID string `json:"questionUid"`
}

type endPayload struct {
	Reason domain.EndReason `json:"reason"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and maps inbound messages onto
// the practice commands. Events of the attached session are pushed as "event".
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	sessionID := r.URL.Query().Get("sessionId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var forwarders sync.WaitGroup
	cancelSub := func() {}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	reply := func(typ string, payload any) {
		send <- outboundMessage[any]{Type: typ, Payload: payload}
	}
	replyErr := func(err error) {
		reply("error", errorPayload{Code: domain.ErrorCode(err), Message: err.Error()})
	}

	attach := func(id string) error {
		events, cancel, err := h.service.Subscribe(ctx, id)
		if err != nil {
			return err
		}
		cancelSub()
		cancelSub = cancel
		forwarders.Add(1)
		go func() {
			defer forwarders.Done()
			for {
				select {
				case event, ok := <-events:
					if !ok {
						return
					}
					select {
					case send <- outboundMessage[any]{Type: "event", Payload: event}:
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}()
		sessionID = id
		return nil
	}

	if sessionID != "" {
		if err := attach(sessionID); err != nil {
			replyErr(err)
			sessionID = ""
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "create":
			var settings domain.PracticeSettings
			if err := json.Unmarshal(inbound.Payload, &settings); err != nil {
				reply("error", errorPayload{Code: "bad_request", Message: "invalid create payload"})
				continue
			}
			session, err := h.service.CreateSession(ctx, userID, settings)
			if err != nil {
				replyErr(err)
				continue
			}
			if err := attach(session.SessionID); err != nil {
				replyErr(err)
				continue
			}
			reply("session", session)
		case "next":
			var payload nextPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					reply("error", errorPayload{Code: "bad_request", Message: "invalid next payload"})
					continue
				}
			}
			h.replySession(reply, replyErr)(h.service.GetNextQuestion(ctx, sessionID, payload.SkipCurrent))
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply("error", errorPayload{Code: "bad_request", Message: "invalid answer payload"})
				continue
			}
			result, err := h.service.SubmitAnswer(ctx, sessionID, payload.QuestionUID, payload.SelectedAnswers, payload.TimeSpentMs)
			if err != nil {
				replyErr(err)
				continue
			}
			reply("answerResult", result)
		case "retry":
			var payload retryPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply("error", errorPayload{Code: "bad_request", Message: "invalid retry payload"})
				continue
			}
			h.replySession(reply, replyErr)(h.service.RetryQuestion(ctx, sessionID, payload.QuestionUID))
		case "end":
			var payload endPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply("error", errorPayload{Code: "bad_request", Message: "invalid end payload"})
				continue
			}
			h.replySession(reply, replyErr)(h.service.EndSession(ctx, sessionID, payload.Reason))
		case "state":
			h.replySession(reply, replyErr)(h.service.GetSessionState(ctx, sessionID))
		default:
			reply("error", errorPayload{Code: "bad_request", Message: "unsupported message type"})
		}
	}

	cancelSub()
	close(closeSignals)
	forwarders.Wait()
	close(send)
	<-writerDone
}

func (h *WSHandler) replySession(reply func(string, any), replyErr func(error)) func(domain.PracticeSession, error) {
	return func(session domain.PracticeSession, err error) {
		if err != nil {
			replyErr(err)
			return
		}
		reply("session", session)
	}
}
