package ai

import (
	"context"
	"fmt"

	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

// Static produces deterministic template replies. It keeps drafting alive in
// environments with no model configured and anchors tests.
type Static struct{}

func NewStatic() *Static { return &Static{} }

func (s *Static) Generate(ctx context.Context, in domain.GenerationInput) (string, error) {
	name := in.BusinessName
	if name == "" {
		name = "our team"
	}
	switch {
	case in.Stars >= 4:
		return fmt.Sprintf("Thank you so much for the kind words! Everyone at %s is thrilled you had a great visit, and we hope to see you again soon.", name), nil
	case in.Stars == 3:
		return fmt.Sprintf("Thank you for your honest feedback. We're glad parts of your visit worked well, and %s is looking closely at where we fell short. We'd love another chance to do better.", name), nil
	default:
		return fmt.Sprintf("We're sorry your experience didn't meet expectations. Your feedback matters to %s and we're addressing it with the team. Please reach out so we can make this right.", name), nil
	}
}
