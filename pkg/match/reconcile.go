package match

import "github.com/kestrelfin/swiftpipe/pkg/docstore"

// ReconcileParties surfaces the buyer/seller inversion between how the
// extractor labels a template's trading pair (buyerId=senderId,
// sellerId=receiverId) and how a transaction labels it
// (buyerId=receiverId, sellerId=senderId). On every transaction matched
// against its own trading pair's template those two conventions are
// inverted from each other by construction, so that inversion is the
// case this annotates rather than the case it lets through silently:
// only a transaction and template that agree outright on which party
// is which (no inversion at all) is left unannotated.
func ReconcileParties(tx *docstore.Transaction, tpl docstore.Template) {
	if tx.BuyerID == tpl.BuyerID && tx.SellerID == tpl.SellerID {
		return
	}

	if tx.Metadata == nil {
		tx.Metadata = map[string]string{}
	}
	tx.Metadata["partyReconciliation"] = "transaction and template disagree on buyer/seller assignment: tx.buyer=" +
		tx.BuyerID + " tx.seller=" + tx.SellerID + " template.buyer=" + tpl.BuyerID + " template.seller=" + tpl.SellerID
}
