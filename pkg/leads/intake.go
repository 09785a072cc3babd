package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jordanlanch/estatecrm/pkg/chat"
	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/leadscoring"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const chatVisitorName = "Chat visitor"

// SubmitContact turns a public website enquiry into a lead.
func (s *Service) SubmitContact(ctx context.Context, req models.ContactFormRequest) (*schema.Lead, error) {
	if err := validation.CheckBudget(req.BudgetMin, req.BudgetMax); err != nil {
		return nil, err
	}
	l := &schema.Lead{
		FullName:        req.Name,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:           s.normalizePhone(req.Phone),
		City:            req.City,
		Message:         req.Message,
		TransactionType: schema.TransactionType(req.TransactionType),
		BudgetMin:       req.BudgetMin,
		BudgetMax:       req.BudgetMax,
		PropertyID:      req.PropertyID,
		Source:          schema.SourceWebsiteForm,
		Demand:          datatypes.NewJSONType(schema.Demand{BudgetMin: req.BudgetMin, BudgetMax: req.BudgetMax}),
	}
	if err := s.createPublic(ctx, l, "New website enquiry"); err != nil {
		return nil, err
	}

	if s.mailer != nil && l.Email != "" {
		to, name := l.Email, l.FullName
		s.deliver(func(ctx context.Context) error {
			return s.mailer.SendContactAcknowledgement(ctx, to, name)
		})
	}
	return l, nil
}

// Chat stores one visitor message on a chatbot lead and returns the
// assistant's answer. Without a session lead a new lead is opened.
func (s *Service) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if s.chat == nil {
		return nil, domain.NewInternalError(errors.New("chat responder not configured"))
	}

	var l *schema.Lead
	if req.SessionLeadID != nil {
		var err error
		l, err = s.chatLead(ctx, *req.SessionLeadID)
		if err != nil {
			return nil, err
		}
	} else {
		name := req.Name
		if name == "" {
			name = chatVisitorName
		}
		l = &schema.Lead{
			FullName: name,
			Email:    strings.ToLower(strings.TrimSpace(req.Email)),
			Phone:    s.normalizePhone(req.Phone),
			Message:  req.Message,
			Source:   schema.SourceChatbot,
		}
		if err := s.createPublic(ctx, l, "New chatbot conversation"); err != nil {
			return nil, err
		}
	}

	visitor := schema.ChatMessage{Role: chat.RoleUser, Content: req.Message, CreatedAt: s.now()}
	history := append(append([]schema.ChatMessage{}, l.ChatMessages...), visitor)

	reply, err := s.chat.Reply(ctx, history)
	if err != nil {
		return nil, fmt.Errorf("failed to generate chat reply: %w", err)
	}
	assistant := schema.ChatMessage{Role: chat.RoleAssistant, Content: reply, CreatedAt: s.now()}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Reload so concurrent messages on the same session are not lost.
		cur, err := s.find(tx, l.ID, nil)
		if err != nil {
			return err
		}
		changes := fillContact(cur, req, s.normalizePhone(req.Phone))
		changes["chat_messages"] = append(cur.ChatMessages, visitor, assistant)
		if score := leadscoring.ScoreLead(cur); score != cur.Score {
			changes["score"] = score
		}
		if err := tx.Model(&schema.Lead{}).Where("id = ?", cur.ID).Updates(changes).Error; err != nil {
			return fmt.Errorf("failed to save chat messages: %w", err)
		}
		return s.lifecycle.RecordTx(tx, &schema.LeadActivity{
			LeadID:      cur.ID,
			Type:        schema.ActivityChat,
			Title:       "Chat message received",
			Description: req.Message,
			Metadata:    datatypes.JSONMap{"responder": s.chat.Name()},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordChatMessage(s.chat.Name())
	return &models.ChatResponse{LeadID: l.ID, Reply: reply}, nil
}

func (s *Service) chatLead(ctx context.Context, id uint) (*schema.Lead, error) {
	var l schema.Lead
	err := s.db.WithContext(ctx).Where("id = ? AND source = ?", id, schema.SourceChatbot).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NewNotFoundError("Chat session")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat lead: %w", err)
	}
	return &l, nil
}

// fillContact copies contact details the visitor shared later in the
// conversation onto l, without overwriting what is already known.
func fillContact(l *schema.Lead, req models.ChatRequest, phone string) map[string]any {
	changes := map[string]any{}
	if req.Name != "" && l.FullName == chatVisitorName {
		l.FullName = req.Name
		changes["full_name"] = l.FullName
	}
	if req.Email != "" && l.Email == "" {
		l.Email = strings.ToLower(strings.TrimSpace(req.Email))
		changes["email"] = l.Email
	}
	if phone != "" && l.Phone == "" {
		l.Phone = phone
		changes["phone"] = l.Phone
	}
	return changes
}
