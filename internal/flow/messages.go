package flow

import (
	"fmt"
	"strings"

	"quadra/internal/models"
	"quadra/internal/schedule"
)

// Dialogue texts. The academy serves a Brazilian audience, so every
// user-facing string is Portuguese.
const (
	msgInvalidOption  = "Opção inválida. Responda com o número de uma das opções."
	msgAskName        = "Qual o seu nome completo?"
	msgNameTooShort   = "Por favor, informe nome e sobrenome."
	msgNameBadChars   = "O nome deve conter apenas letras e espaços."
	msgAskCompanion   = "Deseja trazer um acompanhante para a aula experimental?\n1 - Sim\n2 - Não"
	msgAskCompanName  = "Qual o nome completo do acompanhante?"
	msgCompanionSame  = "O acompanhante precisa ter um nome diferente do seu."
	msgConfirmHint    = "Responda Sim para confirmar ou Não para recomeçar."
	msgAborted        = "Tudo bem, agendamento cancelado. Mande uma mensagem quando quiser recomeçar."
	msgRestart        = "Sem problemas, vamos recomeçar."
	msgNoCapacity     = "Esse dia ficou sem horários disponíveis. Escolha outra data:"
	msgSlotTaken      = "Já existe uma reserva nesse horário com esse nome. Se não foi você, escolha outro horário mandando uma nova mensagem."
	msgCapacityLost   = "Poxa, esse horário acabou de lotar. Mande uma nova mensagem para escolher outro horário."
	msgSystemBusy     = "Estamos com muitos acessos agora. Responda Sim novamente em instantes para confirmar."
	msgStoreFailure   = "Tivemos um problema ao gravar sua reserva. Responda Sim novamente para tentar de novo."
	msgSessionTrouble = "Tivemos um problema técnico. Mande uma nova mensagem para recomeçar."
)

func promptUnits(units []schedule.UnitSchedule) string {
	var sb strings.Builder
	sb.WriteString("Em qual unidade você quer agendar sua aula experimental?\n")
	for i, u := range units {
		fmt.Fprintf(&sb, "%d - %s\n", i+1, u.Name)
	}
	sb.WriteString("Responda com o número da unidade.")
	return sb.String()
}

func promptGreeting(units []schedule.UnitSchedule) string {
	return "Olá! Sou o assistente de agendamento da academia. " + promptUnits(units)
}

func promptDates(dates []string) string {
	var sb strings.Builder
	sb.WriteString("Escolha o dia da aula:\n")
	for i, d := range dates {
		fmt.Fprintf(&sb, "%d - %s\n", i+1, formatDate(d))
	}
	return sb.String()
}

func promptTimes(options []schedule.SlotOption) string {
	var sb strings.Builder
	sb.WriteString("Escolha o horário:\n")
	for i, opt := range options {
		if opt.Remaining == 1 {
			fmt.Fprintf(&sb, "%d - %s (última vaga)\n", i+1, opt.Time)
		} else {
			fmt.Fprintf(&sb, "%d - %s\n", i+1, opt.Time)
		}
	}
	return sb.String()
}

func formatSummary(unitName string, b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("Confira os dados da sua aula experimental:\n")
	fmt.Fprintf(&sb, "Unidade: %s\n", unitName)
	fmt.Fprintf(&sb, "Data: %s\n", formatDate(b.Date))
	fmt.Fprintf(&sb, "Horário: %s\n", b.Time)
	fmt.Fprintf(&sb, "Nome: %s\n", b.Name)
	if b.Companion != "" {
		fmt.Fprintf(&sb, "Acompanhante: %s\n", b.Companion)
	}
	sb.WriteString("\nPosso confirmar? (Sim/Não)")
	return sb.String()
}

func formatBooked(unitName string, b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString("Reserva confirmada! ✅\n")
	fmt.Fprintf(&sb, "%s, %s às %s", unitName, formatDate(b.Date), b.Time)
	if b.Companion != "" {
		fmt.Fprintf(&sb, "\nVocê e %s", b.Companion)
	}
	sb.WriteString("\nAté lá!")
	return sb.String()
}

var weekdayNames = [...]string{"domingo", "segunda", "terça", "quarta", "quinta", "sexta", "sábado"}

func formatDate(date string) string {
	d, err := models.ParseDate(date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s (%s)", d.Format("02/01"), weekdayNames[d.Weekday()])
}

func isAffirmative(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "s", "sim", "confirmar", "confirmo", "ok":
		return true
	}
	return false
}

func isNegative(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "2", "n", "nao", "não", "cancelar":
		return true
	}
	return false
}
