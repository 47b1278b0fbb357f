package bakeryops

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
)

// action mirrors the ops system's action document, restricted to the
// fields the pipeline reads.
type action struct {
	ID         string     `json:"_id"`
	ActionType string     `json:"actionType"`
	ActionData actionData `json:"actionData"`
}

type actionData struct {
	Ingredients []ingredientEntry `json:"ingredients"`
	Lots        []lotEntry        `json:"lots"`
}

type ingredientEntry struct {
	Ingredient ingredient `json:"Ingredient"`
}

type ingredient struct {
	ID           flexString `json:"_id"`
	ProductName  string     `json:"productName"`
	AdditionUnit string     `json:"additionUnit"`
}

type lotEntry struct {
	ID        string        `json:"_id"`
	LotNumber string        `json:"lotNumber"`
	Vessels   []vesselEntry `json:"vessels"`
}

type vesselEntry struct {
	ID         string                `json:"_id"`
	VesselCode string                `json:"vesselCode"`
	Additions  map[string]flexString `json:"additions"`
}

// flexString decodes a JSON string, number or null into a string. The
// ops system is not consistent about numeric identifiers and
// quantities; 1200 and "1200" must read back identically, and numeric
// literals keep their exact textual form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Flatten expands a list of ADDITION actions into one candidate per
// (ingredient, lot, vessel) addition. Zero and blank additions are
// dropped here so they never reach the ledger or the wire. Candidates
// come out in a deterministic order regardless of map iteration.
func Flatten(data []byte) ([]domain.CandidateTransaction, error) {
	var actions []action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("decoding actions: %w", err)
	}

	var candidates []domain.CandidateTransaction
	for _, act := range actions {
		if act.ActionType != "ADDITION" {
			continue
		}

		names := make(map[string]string, len(act.ActionData.Ingredients))
		units := make(map[string]string, len(act.ActionData.Ingredients))
		for _, entry := range act.ActionData.Ingredients {
			id := string(entry.Ingredient.ID)
			names[id] = entry.Ingredient.ProductName
			units[id] = entry.Ingredient.AdditionUnit
		}

		for _, lot := range act.ActionData.Lots {
			for _, vessel := range lot.Vessels {
				ids := make([]string, 0, len(vessel.Additions))
				for ingredientID := range vessel.Additions {
					ids = append(ids, ingredientID)
				}
				sort.Strings(ids)

				for _, ingredientID := range ids {
					quantity := string(vessel.Additions[ingredientID])
					if domain.IsZeroQuantity(quantity) {
						continue
					}

					name := names[ingredientID]
					candidates = append(candidates, domain.CandidateTransaction{
						ActionID:            act.ID,
						IngredientID:        ingredientID,
						IngredientName:      name,
						Unit:                units[ingredientID],
						LotID:               lot.ID,
						LotNumber:           lot.LotNumber,
						VesselID:            vessel.ID,
						VesselCode:          vessel.VesselCode,
						Quantity:            quantity,
						UniqueTransactionID: domain.TransactionKey(name, lot.LotNumber, vessel.VesselCode, quantity),
					})
				}
			}
		}
	}

	return candidates, nil
}
