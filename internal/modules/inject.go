package modules

import (
	"context"
	"fmt"

	"autoprobe/internal/browser"
)

const inputSelector = "input"

// attempt is one payload about to be injected into one input.
type attempt struct {
	url     string
	payload string
	element string
	input   browser.Element
}

// injectInputs drives the loop shared by the injection modules: every visible
// input is tried with every payload until the module turns positive. try
// fills and submits one payload and observes the outcome. If the submission
// navigated away the page is taken back; whenever the document changed the
// inputs are queried again, as handles from the previous document are stale.
func (st *state) injectInputs(ctx context.Context, s browser.Session, opts Options, payloads []string, try func(context.Context, attempt) error) error {
	origin, err := s.CurrentURL(ctx)
	if err != nil {
		return err
	}
	inputs, err := s.QueryAll(ctx, inputSelector)
	if err != nil {
		return err
	}
	st.info().Int("inputs", len(inputs)).Msg("Scanning input elements")

	for i := 0; i < len(inputs); i++ {
		if st.positive() {
			break
		}
		if opts.ResetPagePerInput && i > 0 {
			if err := s.Navigate(ctx, origin); err != nil {
				return err
			}
			if inputs, err = s.QueryAll(ctx, inputSelector); err != nil {
				return err
			}
			if i >= len(inputs) {
				break
			}
		}

		visible, err := inputs[i].Visible(ctx)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if !visible {
			st.info().Int("input", i).Msg("Input element is not visible")
			continue
		}

		for _, payload := range payloads {
			if st.positive() {
				break
			}
			pageURL, err := s.CurrentURL(ctx)
			if err != nil {
				return err
			}
			element, err := inputs[i].OuterHTML(ctx)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}

			st.info().Int("input", i).Str("payload", payload).Msg("Testing payload")
			if err := try(ctx, attempt{url: pageURL, payload: payload, element: element, input: inputs[i]}); err != nil {
				return err
			}

			current, err := s.CurrentURL(ctx)
			if err != nil {
				return err
			}
			if current != pageURL {
				if err := s.GoBack(ctx); err != nil {
					return err
				}
			} else {
				// A submission to the same URL can still replace the document.
				connected, err := inputs[i].Connected(ctx)
				if err != nil {
					return fmt.Errorf("input %d: %w", i, err)
				}
				if connected {
					continue
				}
				st.info().Int("input", i).Msg("Document was replaced, querying inputs again")
			}
			if inputs, err = s.QueryAll(ctx, inputSelector); err != nil {
				return err
			}
			if i >= len(inputs) {
				st.warning().Int("input", i).Msg("Input element is gone after the page changed")
				return nil
			}
		}
	}
	return nil
}
